package csvio

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

func TestSerialize_PrefixesBOMAndJoins(t *testing.T) {
	out := Serialize([]string{"a", "b"}, [][]string{{"1", "2"}, {"3", "4"}})

	require.True(t, bytes.HasPrefix(out, bom))
	assert.Equal(t, "a;b\n1;2\n3;4", string(out[len(bom):]))
}

func TestSerialize_HeaderOnly(t *testing.T) {
	out := Serialize([]string{"workspace", "client"}, nil)
	assert.Equal(t, "workspace;client", string(bytes.TrimPrefix(out, bom)))
}

func TestEscapeField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"", ""},
		{"a,b", `"a,b"`},
		{`say "hi"`, `"say ""hi"""`},
		{"line1\nline2", "\"line1\nline2\""},
		{"a;b", `"a;b"`},
		{"cr\rhere", "\"cr\rhere\""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeField(tt.in))
		})
	}
}

func TestSerialize_EscapedValuesSurviveStandardReader(t *testing.T) {
	values := []string{"Acme, Inc.", `The "Best" Co`, "multi\nline", `mixed, "all"` + "\nthree"}
	out := Serialize([]string{"h1", "h2", "h3", "h4"}, [][]string{values})

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(out, bom)))
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, values, records[1])
}

func TestReadRecords_StripsBOMAndSkipsBlankLines(t *testing.T) {
	in := append(append([]byte{}, bom...), []byte("h1;h2\r\n\r\n   \r\nv1;v2\r\n;;\r\nv3;v4")...)

	records, err := ReadRecords(bytes.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"h1", "h2"}, records[0].Fields)
	assert.Equal(t, 1, records[0].Line)
	assert.Equal(t, []string{"v1", "v2"}, records[1].Fields)
	assert.Equal(t, 4, records[1].Line)
	assert.Equal(t, []string{"", "", ""}, records[2].Fields)
	assert.Equal(t, "v4", records[3].Field(1))
}

func TestReadRecords_SeparatorOnlyLineIsKept(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(";;;\nws;acme\n"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"", "", "", ""}, records[0].Fields)
	assert.Equal(t, "acme", records[1].Field(1))
}

func TestReadRecords_MalformedQuotesFail(t *testing.T) {
	inputs := map[string]string{
		"quote inside field": "h;h\nws;\"Acme\" Corp\nws;Beta\n",
		"unclosed quote":     "h;h\nws;\"Acme\nws;Beta\n",
		"bare quote":         "h;h\nws;Ac\"me\nws;Beta\n",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := ReadRecords(strings.NewReader(in))
			var parseErr *csv.ParseError
			require.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestReadRecords_QuotedFields(t *testing.T) {
	in := "h\n\"a;b\";\"x\"\"y\";\"multi\nline\"\n"

	records, err := ReadRecords(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"a;b", `x"y`, "multi\nline"}, records[1].Fields)
}

func TestReadRecords_Empty(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = ReadRecords(bytes.NewReader(bom))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecord_Field(t *testing.T) {
	rec := Record{Fields: []string{"  a  ", "b"}}
	assert.Equal(t, "a", rec.Field(0))
	assert.Equal(t, "", rec.Field(5))
	assert.Equal(t, "", rec.Field(-1))
}

func TestRoundTrip(t *testing.T) {
	header := []string{"a", "b", "c"}
	rows := [][]string{
		{"Acme, Inc.", `He said "ok"`, "x"},
		{"two\nlines", "", "z"},
	}

	records, err := ReadRecords(bytes.NewReader(Serialize(header, rows)))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, header, records[0].Fields)
	assert.Equal(t, rows[0], records[1].Fields)
	assert.Equal(t, rows[1], records[2].Fields)
}
