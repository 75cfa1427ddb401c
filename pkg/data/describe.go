package data

import "strings"

// DescribeSchema renders s as a compact descriptor such as
// "struct<message:string,tags:array<string>>".
func DescribeSchema(s Schema) string {
	if s == nil || s.Type() == TypeNull {
		return "null"
	}
	out, err := VisitSchema[string](s, describer{})
	if err != nil {
		return "invalid"
	}
	return out
}

type describer struct{}

func (describer) MapSimple(s *SimpleSchema) (string, error) {
	return strings.ToLower(s.Type().String()), nil
}

func (describer) MapStruct(s *StructSchema) (string, error) {
	var b strings.Builder
	b.WriteString("struct<")
	for i, f := range s.fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Name)
		b.WriteByte(':')
		b.WriteString(DescribeSchema(f.Schema))
	}
	b.WriteByte('>')
	return b.String(), nil
}

func (describer) MapArray(s *ArraySchema) (string, error) {
	return "array<" + DescribeSchema(s.Elem()) + ">", nil
}

func (describer) MapMap(s *MapSchema) (string, error) {
	return "map<string," + DescribeSchema(s.Value()) + ">", nil
}
