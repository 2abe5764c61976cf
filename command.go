// RTMP command and data message envelopes
//
// AMF0 command messages (RTMP_TYPE_INVOKE) and data messages (RTMP_TYPE_DATA)
// share the same shape: a tag/name string, optionally followed by a fixed
// prologue and a handful of positional values. This file turns that shared
// envelope into the named-argument map the session handlers read from.

package main

// A decoded AMF0 command message: connect, createStream, publish, play, ...
// or a server-to-client reply such as _result / onStatus.
type RTMPCommand struct {
	cmd       string
	arguments map[string]*AMF0Value
}

// A decoded AMF0 data message: @setDataFrame, onMetaData, |RtmpSampleAccess.
type RTMPData struct {
	tag       string
	arguments map[string]*AMF0Value
}

// Returns the positional argument names that follow transId/cmdObj for a
// given command, in wire order. Commands not listed here carry no further
// positional arguments.
func commandExtraArgNames(cmd string) []string {
	switch cmd {
	case "publish":
		return []string{"streamName", "publishType"}
	case "play":
		return []string{"streamName", "start", "duration", "reset"}
	case "pause":
		return []string{"pause", "time"}
	case "deleteStream":
		return []string{"streamId"}
	case "receiveAudio", "receiveVideo":
		return []string{"bool"}
	case "releaseStream", "FCPublish":
		return []string{"streamName"}
	case "_result", "_error", "onStatus":
		return []string{"info"}
	default:
		return nil
	}
}

// Decodes an AMF0 command message payload.
// payload - The raw AMF0-encoded bytes
// Returns the decoded command
func decodeRTMPCommand(payload []byte) RTMPCommand {
	stream := AMFDecodingStream{buffer: payload, pos: 0}
	result := RTMPCommand{arguments: make(map[string]*AMF0Value)}

	if stream.IsEnded() {
		return result
	}

	nameVal := stream.ReadOne()
	result.cmd = nameVal.GetString()

	if !stream.IsEnded() {
		transId := stream.ReadOne()
		result.arguments["transId"] = &transId
	}

	if !stream.IsEnded() {
		cmdObj := stream.ReadOne()
		result.arguments["cmdObj"] = &cmdObj
	}

	extraKeys := commandExtraArgNames(result.cmd)
	for i := 0; i < len(extraKeys) && !stream.IsEnded(); i++ {
		v := stream.ReadOne()
		result.arguments[extraKeys[i]] = &v
	}

	return result
}

// Gets a named argument. Returns an UNDEFINED value if the argument is missing.
func (c *RTMPCommand) GetArg(name string) *AMF0Value {
	v := c.arguments[name]
	if v == nil {
		n := createAMF0Value(AMF0_TYPE_UNDEFINED)
		return &n
	}
	return v
}

func (c *RTMPCommand) ToString() string {
	str := c.cmd + "("
	first := true
	for key, val := range c.arguments {
		if !first {
			str += ", "
		}
		first = false
		str += key + " = " + val.ToString("")
	}
	str += ")"
	return str
}

// Encodes a command message for sending: name, transId, cmdObj, an
// additional "info" value if present (used by _result / onStatus replies),
// then whichever of the command's positional arguments listed by
// commandExtraArgNames are set, in wire order.
func (c *RTMPCommand) Encode() []byte {
	var r []byte

	nameVal := createAMF0Value(AMF0_TYPE_STRING)
	nameVal.str_val = c.cmd
	r = append(r, amf0EncodeOne(nameVal)...)

	if v, ok := c.arguments["transId"]; ok {
		r = append(r, amf0EncodeOne(*v)...)
	}

	if v, ok := c.arguments["cmdObj"]; ok {
		r = append(r, amf0EncodeOne(*v)...)
	}

	if v, ok := c.arguments["info"]; ok {
		r = append(r, amf0EncodeOne(*v)...)
	}

	for _, name := range commandExtraArgNames(c.cmd) {
		if v, ok := c.arguments[name]; ok && name != "info" {
			r = append(r, amf0EncodeOne(*v)...)
		}
	}

	return r
}

// Decodes an AMF0 data message payload.
// payload - The raw AMF0-encoded bytes
// Returns the decoded data message
func decodeRTMPData(payload []byte) RTMPData {
	stream := AMFDecodingStream{buffer: payload, pos: 0}
	result := RTMPData{arguments: make(map[string]*AMF0Value)}

	if stream.IsEnded() {
		return result
	}

	tagVal := stream.ReadOne()
	result.tag = tagVal.GetString()

	switch result.tag {
	case "@setDataFrame":
		// Nested tag (normally "onMetaData") followed by the actual object.
		if !stream.IsEnded() {
			inner := stream.ReadOne()
			result.arguments["dataFrameTag"] = &inner
		}
		if !stream.IsEnded() {
			dataObj := stream.ReadOne()
			result.arguments["dataObj"] = &dataObj
		}
	case "|RtmpSampleAccess":
		if !stream.IsEnded() {
			b1 := stream.ReadOne()
			result.arguments["bool1"] = &b1
		}
		if !stream.IsEnded() {
			b2 := stream.ReadOne()
			result.arguments["bool2"] = &b2
		}
	default:
		if !stream.IsEnded() {
			dataObj := stream.ReadOne()
			result.arguments["dataObj"] = &dataObj
		}
	}

	return result
}

func (d *RTMPData) GetArg(name string) *AMF0Value {
	v := d.arguments[name]
	if v == nil {
		n := createAMF0Value(AMF0_TYPE_UNDEFINED)
		return &n
	}
	return v
}

func (d *RTMPData) ToString() string {
	str := d.tag + "("
	first := true
	for key, val := range d.arguments {
		if !first {
			str += ", "
		}
		first = false
		str += key + " = " + val.ToString("")
	}
	str += ")"
	return str
}

// Encodes a data message for sending: tag followed by whichever of
// dataObj / bool1+bool2 were set.
func (d *RTMPData) Encode() []byte {
	var r []byte

	tagVal := createAMF0Value(AMF0_TYPE_STRING)
	tagVal.str_val = d.tag
	r = append(r, amf0EncodeOne(tagVal)...)

	if v, ok := d.arguments["dataObj"]; ok {
		r = append(r, amf0EncodeOne(*v)...)
	}
	if v, ok := d.arguments["bool1"]; ok {
		r = append(r, amf0EncodeOne(*v)...)
	}
	if v, ok := d.arguments["bool2"]; ok {
		r = append(r, amf0EncodeOne(*v)...)
	}

	return r
}
