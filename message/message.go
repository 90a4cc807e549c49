// Package message defines the payload shapes carried by the reserved DDS
// RPC commands: the envelope types client and server agree on for topic
// list updates and published data.
package message

// TopicList is the payload of the "update_topic_list" command: the
// caller's current topic key set.
type TopicList []string

// Msg is the payload of the "publish" command: one topic's data.
type Msg struct {
	Topic string
	Data  string
}
