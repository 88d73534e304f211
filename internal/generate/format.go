package generate

import (
	"encoding/json"
	"strings"
)

// lineBreaks keeps one row per line in CSV output. Values are otherwise
// written verbatim: embedded commas are not quoted.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// header returns the CSV header line, or nil for formats without one.
func header(job *Job) []byte {
	if job.Format != FormatCSV {
		return nil
	}
	return []byte(strings.Join(job.ColumnNames(), ",") + "\n")
}

// formatRow renders one row as a newline-terminated line.
func formatRow(job *Job, row Row) []byte {
	if job.Format == FormatJSON {
		return jsonLine(job, row)
	}
	var sb strings.Builder
	for i, c := range job.Columns {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(lineBreaks.Replace(row[c.Name]))
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}

// jsonLine writes an object whose keys follow column order, which
// encoding a map would not preserve.
func jsonLine(job *Job, row Row) []byte {
	buf := make([]byte, 0, 32*len(job.Columns))
	buf = append(buf, '{')
	for i, c := range job.Columns {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, _ := json.Marshal(c.Name)
		v, _ := json.Marshal(row[c.Name])
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}', '\n')
}
