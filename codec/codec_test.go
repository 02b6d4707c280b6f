package codec

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type caseDoc struct {
	ID    string    `json:"id" cbor:"id" msgpack:"id"`
	Title string    `json:"title" cbor:"title" msgpack:"title"`
	Tags  []string  `json:"tags" cbor:"tags" msgpack:"tags"`
	Filed time.Time `json:"filed" cbor:"filed" msgpack:"filed"`
}

func sampleDoc() caseDoc {
	return caseDoc{
		ID:    "42",
		Title: "Roe v. Wade",
		Tags:  []string{"appeal", "<scotus>"},
		Filed: time.Date(1971, 12, 13, 0, 0, 0, 0, time.UTC),
	}
}

func TestGeneralCodecsRoundTrip(t *testing.T) {
	codecs := map[string]Codec[caseDoc]{
		"json":     JSON[caseDoc]{},
		"cbor":     MustCBOR[caseDoc](true),
		"cborfast": MustCBOR[caseDoc](false),
		"msgpack":  Msgpack[caseDoc]{},
	}
	want := sampleDoc()
	for name, c := range codecs {
		b, err := c.Encode(want)
		if err != nil {
			t.Fatalf("%s encode: %v", name, err)
		}
		got, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if !got.Filed.Equal(want.Filed) {
			t.Fatalf("%s filed: got %v want %v", name, got.Filed, want.Filed)
		}
		got.Filed = want.Filed
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: got %+v want %+v", name, got, want)
		}
	}
}

func TestJSONDoesNotEscapeHTML(t *testing.T) {
	b, err := JSON[string]{}.Encode("<scotus>&")
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"<scotus>&"` {
		t.Fatalf("got %s", b)
	}
}

func TestCBORDeterministicIsStable(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	in := map[string]int{"b": 2, "a": 1, "c": 3}
	b1, err := c.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		b2, _ := c.Encode(in)
		if !bytes.Equal(b1, b2) {
			t.Fatalf("deterministic encoding differs: %x vs %x", b1, b2)
		}
	}
}

func TestProtobufRoundTrip(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	in := wrapperspb.String("docket 21-1234")
	b, err := c.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if !proto.Equal(in, out) {
		t.Fatalf("got %v want %v", out, in)
	}
}

func TestLimitRejectsOversizedPayload(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 4}
	if _, err := c.Decode([]byte("12345")); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}
	v, err := c.Decode([]byte("1234"))
	if err != nil || v != "1234" {
		t.Fatalf("got %q err=%v", v, err)
	}
	unlimited := Limit[string]{Inner: String{}}
	if _, err := unlimited.Decode(bytes.Repeat([]byte("x"), 1<<16)); err != nil {
		t.Fatalf("MaxDecode=0 should disable the limit: %v", err)
	}
}

func TestRawCodecs(t *testing.T) {
	in := []byte{0, 1, 2}
	b, _ := Bytes{}.Encode(in)
	out, _ := Bytes{}.Decode(b)
	if !bytes.Equal(out, in) {
		t.Fatalf("Bytes round trip: %x", out)
	}
	s, _ := String{}.Decode([]byte("brown"))
	if s != "brown" {
		t.Fatalf("String decode: %q", s)
	}
}

func TestNamed(t *testing.T) {
	for _, name := range []string{"", "json", "cbor", "msgpack"} {
		c, err := Named[caseDoc](name)
		if err != nil || c == nil {
			t.Fatalf("Named(%q): %v", name, err)
		}
	}
	if _, err := Named[caseDoc]("xml"); err == nil {
		t.Fatalf("Named(xml) should fail")
	}
}
