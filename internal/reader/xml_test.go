package reader

import (
	"os"
	"reflect"
	"testing"

	"fileflow/internal/config"
	"fileflow/internal/source"
)

const articles = `<?xml version="1.0"?>
<Set>
  <Article>
    <Title> First </Title>
    <Ids>
      <Id type="pmid">1</Id>
      <Id type="doi">10.1/a</Id>
    </Ids>
    <Authors><Name>Ann</Name><Name>Bob</Name></Authors>
  </Article>
  <Article>
    <Title>Second</Title>
    <Ids><Id type="pmid">2</Id></Ids>
  </Article>
</Set>
`

func TestXMLReader_FieldsAndLists(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "set.xml", articles)
	s := config.Settings{
		"record_tag": "Article",
		"fields":     "title=Title;doi=Ids/Id[@type='doi'];pmid=Id",
		"lists":      "authors=Authors/Name",
	}
	recs := readAll(t, "xml", s, path, source.StartOffset())
	if len(recs) != 2 {
		t.Fatalf("got %d records; want 2", len(recs))
	}

	if got := field(t, recs[0], "title"); got != "First" {
		t.Fatalf("title = %q; want trimmed First", got)
	}
	if got := field(t, recs[0], "doi"); got != "10.1/a" {
		t.Fatalf("doi = %q", got)
	}
	if got := field(t, recs[0], "pmid"); got != "1" {
		t.Fatalf("pmid = %q; want first match 1", got)
	}
	arr, err := recs[0].Value.GetArray("authors")
	if err != nil {
		t.Fatalf("authors: %v", err)
	}
	var names []string
	for _, v := range arr {
		names = append(names, v.Value().(string))
	}
	if !reflect.DeepEqual(names, []string{"Ann", "Bob"}) {
		t.Fatalf("authors = %v", names)
	}
	if recs[1].Value.Has("doi") || recs[1].Value.Has("authors") {
		t.Fatalf("second record has fields it should not: %v", recs[1].Value)
	}

	first := recs[0].Offset.(source.BytesRecordOffset)
	second := recs[1].Offset.(source.BytesRecordOffset)
	if articles[first.Start:first.Start+9] != "<Article>" || first.End > second.Start {
		t.Fatalf("offsets %v %v do not frame the elements", first, second)
	}
}

func TestXMLReader_DefaultsToChildElements(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "rows.xml", `<rows><row><id>7</id><name>x</name><meta><k>v</k></meta></row></rows>`)
	recs := readAll(t, "xml", config.Settings{"record_tag": "row"}, path, source.StartOffset())
	if len(recs) != 1 {
		t.Fatalf("got %d records; want 1", len(recs))
	}
	if field(t, recs[0], "id") != "7" || field(t, recs[0], "name") != "x" || field(t, recs[0], "meta") != "v" {
		t.Fatalf("record = %v", recs[0].Value)
	}
}

/*
TestXMLReader_StopsBeforePartialRecord appends a record in two writes, like
a producer flushing mid-element. The first pass must stop before the partial
record and the resumed pass must return it whole.
*/
func TestXMLReader_StopsBeforePartialRecord(t *testing.T) {
	t.Parallel()

	s := config.Settings{"record_tag": "e"}
	path := writeFile(t, "grow.xml", "<log><e><m>1</m></e><e><m>2")

	recs := readAll(t, "xml", s, path, source.StartOffset())
	if len(recs) != 1 || field(t, recs[0], "m") != "1" {
		t.Fatalf("first pass = %v", recs)
	}
	checkpoint := recs[0].Offset.ToSourceOffset()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("</m></e></log>\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	recs = readAll(t, "xml", s, path, checkpoint)
	if len(recs) != 1 || field(t, recs[0], "m") != "2" {
		t.Fatalf("resumed pass = %v", recs)
	}
}

func TestParseXMLPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    []pathSeg
		wantErr bool
	}{
		{"A/B", []pathSeg{{name: "A"}, {name: "B"}}, false},
		{"Id[@type='doi']", []pathSeg{{name: "Id", attrName: "type", attrVal: "doi"}}, false},
		{`X/Id[@type="pmid"]`, []pathSeg{{name: "X"}, {name: "Id", attrName: "type", attrVal: "pmid"}}, false},
		{"", nil, true},
		{"A//B", nil, true},
		{"A[@k='v']/B", nil, true},
		{"A[1]", nil, true},
	}
	for _, tc := range tests {
		got, err := parseXMLPath(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("parseXMLPath(%q) err = %v; wantErr %v", tc.in, err, tc.wantErr)
		}
		if !tc.wantErr && !reflect.DeepEqual(got.segs, tc.want) {
			t.Fatalf("parseXMLPath(%q) = %+v; want %+v", tc.in, got.segs, tc.want)
		}
	}
}
