package main

import "testing"

func encodeAMF0Values(values ...AMF0Value) []byte {
	var buf []byte
	for _, v := range values {
		buf = append(buf, amf0EncodeOne(v)...)
	}
	return buf
}

func stringValue(s string) AMF0Value {
	v := createAMF0Value(AMF0_TYPE_STRING)
	v.str_val = s
	return v
}

func numberValue(n float64) AMF0Value {
	v := createAMF0Value(AMF0_TYPE_NUMBER)
	v.SetFloatVal(n)
	return v
}

func TestDecodeRTMPCommandPublish(t *testing.T) {
	cmdObj := createAMF0Value(AMF0_TYPE_NULL)
	payload := encodeAMF0Values(
		stringValue("publish"),
		numberValue(5),
		cmdObj,
		stringValue("mystream"),
		stringValue("live"),
	)

	cmd := decodeRTMPCommand(payload)

	if cmd.cmd != "publish" {
		t.Fatalf("expected cmd 'publish', got %q", cmd.cmd)
	}
	if cmd.GetArg("transId").GetDouble() != 5 {
		t.Fatalf("expected transId 5, got %f", cmd.GetArg("transId").GetDouble())
	}
	if cmd.GetArg("streamName").GetString() != "mystream" {
		t.Fatalf("expected streamName 'mystream', got %q", cmd.GetArg("streamName").GetString())
	}
	if cmd.GetArg("publishType").GetString() != "live" {
		t.Fatalf("expected publishType 'live', got %q", cmd.GetArg("publishType").GetString())
	}
}

func TestDecodeRTMPCommandMissingArgIsUndefined(t *testing.T) {
	payload := encodeAMF0Values(stringValue("connect"))
	cmd := decodeRTMPCommand(payload)

	if !cmd.GetArg("transId").IsUndefined() {
		t.Fatalf("expected missing transId to read back as UNDEFINED")
	}
}

func TestDecodeRTMPDataSetDataFrame(t *testing.T) {
	meta := createAMF0Value(AMF0_TYPE_OBJECT)
	width := numberValue(1920)
	meta.obj_val["width"] = &width

	payload := encodeAMF0Values(
		stringValue("@setDataFrame"),
		stringValue("onMetaData"),
		meta,
	)

	data := decodeRTMPData(payload)

	if data.tag != "@setDataFrame" {
		t.Fatalf("expected tag '@setDataFrame', got %q", data.tag)
	}
	if data.GetArg("dataFrameTag").GetString() != "onMetaData" {
		t.Fatalf("expected nested tag 'onMetaData', got %q", data.GetArg("dataFrameTag").GetString())
	}
	width_prop := data.GetArg("dataObj").GetProperty("width")
	if width_prop.GetDouble() != 1920 {
		t.Fatalf("expected width 1920, got %f", width_prop.GetDouble())
	}
}

func TestRTMPCommandEncodeRoundTrip(t *testing.T) {
	cmd := &RTMPCommand{
		cmd:       "publish",
		arguments: make(map[string]*AMF0Value),
	}
	transId := numberValue(3)
	cmd.arguments["transId"] = &transId

	encoded := cmd.Encode()
	decoded := decodeRTMPCommand(encoded)

	if decoded.cmd != "publish" {
		t.Fatalf("expected decoded cmd 'publish', got %q", decoded.cmd)
	}
	if decoded.GetArg("transId").GetDouble() != 3 {
		t.Fatalf("expected transId 3, got %f", decoded.GetArg("transId").GetDouble())
	}
}
