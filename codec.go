package pst

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of a persisted node. The message is
//
//	message Node {
//	  string left  = 1;
//	  string right = 2;
//	  bytes  agg   = 3;
//	  bytes  tag   = 4;
//	}
//
// with absent children and absent tags omitted.
const (
	fieldLeft  protowire.Number = 1
	fieldRight protowire.Number = 2
	fieldAgg   protowire.Number = 3
	fieldTag   protowire.Number = 4
)

type wireNode struct {
	left, right string
	agg         []byte
	tag         []byte
	tagged      bool
}

func defaultMarshal[V any](v V) ([]byte, error) {
	return json.Marshal(v)
}

func defaultUnmarshal[V any](b []byte, v *V) error {
	return json.Unmarshal(b, v)
}

func marshalNode(n wireNode) []byte {
	var buf []byte
	if n.left != "" {
		buf = protowire.AppendTag(buf, fieldLeft, protowire.BytesType)
		buf = protowire.AppendString(buf, n.left)
	}
	if n.right != "" {
		buf = protowire.AppendTag(buf, fieldRight, protowire.BytesType)
		buf = protowire.AppendString(buf, n.right)
	}
	buf = protowire.AppendTag(buf, fieldAgg, protowire.BytesType)
	buf = protowire.AppendBytes(buf, n.agg)
	if n.tagged {
		buf = protowire.AppendTag(buf, fieldTag, protowire.BytesType)
		buf = protowire.AppendBytes(buf, n.tag)
	}
	return buf
}

func unmarshalNode(buf []byte) (wireNode, error) {
	var n wireNode
	for len(buf) > 0 {
		num, typ, l := protowire.ConsumeTag(buf)
		if l < 0 {
			return wireNode{}, fmt.Errorf("node tag: %w", protowire.ParseError(l))
		}
		buf = buf[l:]
		if typ != protowire.BytesType {
			l = protowire.ConsumeFieldValue(num, typ, buf)
			if l < 0 {
				return wireNode{}, fmt.Errorf("node field %d: %w", num, protowire.ParseError(l))
			}
			buf = buf[l:]
			continue
		}
		value, l := protowire.ConsumeBytes(buf)
		if l < 0 {
			return wireNode{}, fmt.Errorf("node field %d: %w", num, protowire.ParseError(l))
		}
		buf = buf[l:]
		switch num {
		case fieldLeft:
			n.left = string(value)
		case fieldRight:
			n.right = string(value)
		case fieldAgg:
			n.agg = append([]byte(nil), value...)
		case fieldTag:
			n.tag = append([]byte(nil), value...)
			n.tagged = true
		}
	}
	return n, nil
}
