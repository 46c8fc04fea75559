package tapv1

// This file hand-builds the FileDescriptorProto protoc-gen-go would
// otherwise emit as a flat rawDesc byte literal. protoc was not available
// when this package was produced, so the descriptor is assembled field by
// field through descriptorpb's own generated types and marshaled once at
// init time instead of being pasted in as opaque bytes.

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

func field(name string, number int32, label descriptorpb.FieldDescriptorProto_Label, typ descriptorpb.FieldDescriptorProto_Type, typeName, jsonName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(number),
		Label:    label.Enum(),
		Type:     typ.Enum(),
		JsonName: proto.String(jsonName),
	}
	if typeName != "" {
		f.TypeName = proto.String(typeName)
	}
	return f
}

const (
	optional = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	repeated = descriptorpb.FieldDescriptorProto_LABEL_REPEATED

	tString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
	tInt32   = descriptorpb.FieldDescriptorProto_TYPE_INT32
	tInt64   = descriptorpb.FieldDescriptorProto_TYPE_INT64
	tBool    = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	tMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
)

func file_tap_v1_tap_proto_rawDesc() []byte {
	fd := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("tap/v1/tap.proto"),
		Package: proto.String("tap.v1"),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/mickamy/sql-tap-proxy/gen/tap/v1;tapv1"),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("WatchRequest"),
			},
			{
				Name: proto.String("WatchResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("event", 1, optional, tMessage, ".tap.v1.Event", "event"),
				},
			},
			{
				Name: proto.String("Event"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("id", 1, optional, tString, "", "id"),
					field("op", 2, optional, tInt32, "", "op"),
					field("query", 3, optional, tString, "", "query"),
					field("args", 4, repeated, tString, "", "args"),
					field("start_time_unix_nano", 5, optional, tInt64, "", "startTimeUnixNano"),
					field("duration_nanos", 6, optional, tInt64, "", "durationNanos"),
					field("rows_affected", 7, optional, tInt64, "", "rowsAffected"),
					field("error", 8, optional, tString, "", "error"),
					field("tx_id", 9, optional, tString, "", "txId"),
				},
			},
			{
				Name: proto.String("ExplainRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("query", 1, optional, tString, "", "query"),
					field("args", 2, repeated, tString, "", "args"),
					field("analyze", 3, optional, tBool, "", "analyze"),
				},
			},
			{
				Name: proto.String("ExplainResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("plan", 1, optional, tString, "", "plan"),
					field("duration_nanos", 2, optional, tInt64, "", "durationNanos"),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{
			{
				Name: proto.String("TapService"),
				Method: []*descriptorpb.MethodDescriptorProto{
					{
						Name:            proto.String("Watch"),
						InputType:       proto.String(".tap.v1.WatchRequest"),
						OutputType:      proto.String(".tap.v1.WatchResponse"),
						ServerStreaming: proto.Bool(true),
					},
					{
						Name:       proto.String("Explain"),
						InputType:  proto.String(".tap.v1.ExplainRequest"),
						OutputType: proto.String(".tap.v1.ExplainResponse"),
					},
				},
			},
		},
	}

	b, err := proto.Marshal(fd)
	if err != nil {
		panic("tapv1: marshal bootstrap descriptor: " + err.Error())
	}
	return b
}
