package main

import "testing"

// Round-trips the scalar AMF0 types the command dialog exchanges (number,
// bool, string, null, undefined) through amf0EncodeOne/ReadOne; objects and
// strict arrays are covered by the two tests below.
func TestAmf0RoundTripScalars(t *testing.T) {
	number := createAMF0Value(AMF0_TYPE_NUMBER)
	number.SetFloatVal(3.5)

	boolean := createAMF0Value(AMF0_TYPE_BOOL)
	boolean.bool_val = true

	str := createAMF0Value(AMF0_TYPE_STRING)
	str.str_val = "live"

	null := createAMF0Value(AMF0_TYPE_NULL)
	undef := createAMF0Value(AMF0_TYPE_UNDEFINED)

	cases := []AMF0Value{number, boolean, str, null, undef}

	for _, v := range cases {
		encoded := amf0EncodeOne(v)
		stream := &AMFDecodingStream{buffer: encoded}
		decoded := stream.ReadOne()

		if decoded.amf_type != v.amf_type {
			t.Fatalf("type mismatch: got %d want %d", decoded.amf_type, v.amf_type)
		}
		if !stream.IsEnded() {
			t.Fatalf("decoder left %d unread bytes", len(stream.buffer)-stream.pos)
		}
		switch v.amf_type {
		case AMF0_TYPE_NUMBER:
			if decoded.GetDouble() != v.GetDouble() {
				t.Fatalf("number mismatch: got %f want %f", decoded.GetDouble(), v.GetDouble())
			}
		case AMF0_TYPE_BOOL:
			if decoded.GetBool() != v.GetBool() {
				t.Fatalf("bool mismatch: got %v want %v", decoded.GetBool(), v.GetBool())
			}
		case AMF0_TYPE_STRING:
			if decoded.GetString() != v.GetString() {
				t.Fatalf("string mismatch: got %q want %q", decoded.GetString(), v.GetString())
			}
		}
	}
}

func TestAmf0RoundTripObject(t *testing.T) {
	obj := createAMF0Value(AMF0_TYPE_OBJECT)
	app := createAMF0Value(AMF0_TYPE_STRING)
	app.str_val = "live"
	obj.obj_val["app"] = &app

	encoded := amf0EncodeOne(obj)
	stream := &AMFDecodingStream{buffer: encoded}
	decoded := stream.ReadOne()

	if decoded.amf_type != AMF0_TYPE_OBJECT {
		t.Fatalf("expected object, got type %d", decoded.amf_type)
	}
	prop := decoded.GetProperty("app")
	if prop.GetString() != "live" {
		t.Fatalf("expected app='live', got %q", prop.GetString())
	}
	if !stream.IsEnded() {
		t.Fatalf("decoder left %d unread bytes", len(stream.buffer)-stream.pos)
	}
}

func TestAmf0RoundTripStrictArray(t *testing.T) {
	a := createAMF0Value(AMF0_TYPE_STRICT_ARRAY)
	first := createAMF0Value(AMF0_TYPE_NUMBER)
	first.SetFloatVal(1)
	second := createAMF0Value(AMF0_TYPE_NUMBER)
	second.SetFloatVal(2)
	a.array_val = []*AMF0Value{&first, &second}

	encoded := amf0EncodeOne(a)
	stream := &AMFDecodingStream{buffer: encoded}
	decoded := stream.ReadOne()

	if len(decoded.array_val) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(decoded.array_val))
	}
	if decoded.array_val[0].GetDouble() != 1 || decoded.array_val[1].GetDouble() != 2 {
		t.Fatalf("strict array values mismatch: %v", decoded.array_val)
	}
}

// A multi-value command buffer (the shape decodeRTMPCommand actually sees)
// must decode back to exactly as many values as were encoded, in order.
func TestAmf0DecodingStreamMultipleValues(t *testing.T) {
	name := createAMF0Value(AMF0_TYPE_STRING)
	name.str_val = "connect"
	txID := createAMF0Value(AMF0_TYPE_NUMBER)
	txID.SetFloatVal(1)

	var buf []byte
	buf = append(buf, amf0EncodeOne(name)...)
	buf = append(buf, amf0EncodeOne(txID)...)

	stream := &AMFDecodingStream{buffer: buf}
	var values []AMF0Value
	for !stream.IsEnded() {
		values = append(values, stream.ReadOne())
	}

	if len(values) != 2 {
		t.Fatalf("expected 2 decoded values, got %d", len(values))
	}
	if values[0].GetString() != "connect" {
		t.Fatalf("expected first value 'connect', got %q", values[0].GetString())
	}
	if values[1].GetDouble() != 1 {
		t.Fatalf("expected second value 1, got %f", values[1].GetDouble())
	}
}
