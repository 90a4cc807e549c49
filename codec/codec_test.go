package codec

import "testing"

type sample struct {
	Name  string
	Count int
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := &JSONCodec{}
	orig := sample{Name: "widget", Count: 3}

	data, err := c.Encode(orig)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	var got sample
	if err := c.Decode(data, &got); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != orig {
		t.Fatalf("expect %+v, got %+v", orig, got)
	}
}

func TestGobCodecRoundTrip(t *testing.T) {
	c := &GobCodec{}
	orig := []string{"a", "b", "c"}

	data, err := c.Encode(orig)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	var got []string
	if err := c.Decode(data, &got); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(got) != len(orig) {
		t.Fatalf("expect %v, got %v", orig, got)
	}
	for i := range orig {
		if got[i] != orig[i] {
			t.Fatalf("expect %v, got %v", orig, got)
		}
	}
}

func TestGetDefaultsToGob(t *testing.T) {
	if _, ok := Get(Type(99)).(*GobCodec); !ok {
		t.Fatal("expect unrecognized codec type to default to GobCodec")
	}
	if _, ok := Get(TypeJSON).(*JSONCodec); !ok {
		t.Fatal("expect TypeJSON to return JSONCodec")
	}
}
