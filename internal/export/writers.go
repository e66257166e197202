package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// recordWriter writes scrubbed records to the output file.
type recordWriter interface {
	Write(record *TextRecord) error
	Flush() error
}

func newRecordWriter(w io.Writer, format FileFormat) (recordWriter, error) {
	switch format {
	case FormatCSV:
		return newCSVWriter(w), nil
	case FormatJSONL:
		return newJSONLWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

type csvRecordWriter struct {
	w           *csv.Writer
	wroteHeader bool
}

func newCSVWriter(w io.Writer) *csvRecordWriter {
	return &csvRecordWriter{w: csv.NewWriter(w)}
}

func (c *csvRecordWriter) Write(record *TextRecord) error {
	if !c.wroteHeader {
		if err := c.w.Write([]string{"id", "text", "source"}); err != nil {
			return err
		}
		c.wroteHeader = true
	}
	return c.w.Write([]string{record.ID, record.Text, record.Source})
}

func (c *csvRecordWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

type jsonlRecordWriter struct {
	buf *bufio.Writer
	enc *json.Encoder
}

func newJSONLWriter(w io.Writer) *jsonlRecordWriter {
	buf := bufio.NewWriter(w)
	return &jsonlRecordWriter{buf: buf, enc: json.NewEncoder(buf)}
}

func (j *jsonlRecordWriter) Write(record *TextRecord) error {
	return j.enc.Encode(record)
}

func (j *jsonlRecordWriter) Flush() error {
	return j.buf.Flush()
}
