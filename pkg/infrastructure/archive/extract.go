package archive

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/WangYihang/subprobe/pkg/domain/service"
	mapset "github.com/deckarep/golang-set/v2"
)

// hostRegex isolates the host of a URL-ish record: optional scheme,
// optional userinfo, then everything up to the port, path, query or fragment
var hostRegex = regexp.MustCompile(`^(?:[a-zA-Z][a-zA-Z0-9+.\-]*://)?(?:[^/?#@\s]*@)?([^/?#:\s]+)`)

// headerField is the column name the CDX JSON output puts in its first row
const headerField = "original"

// ParseRecords splits an archive body into raw URL records.
// A JSON array of rows yields the first column of every row except the
// header; anything else is read as one record per line.
func ParseRecords(body string) []string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil
	}

	if strings.HasPrefix(trimmed, "[") {
		if records, ok := parseJSONRows(trimmed); ok {
			return records
		}
	}

	var records []string
	for _, line := range strings.Split(trimmed, "\n") {
		record, ok := lineRecord(line)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records
}

// lineRecord takes the first field of a line. Lines of a CDX JSON body
// that failed to parse as a whole, such as a truncated response, are
// unwrapped row by row.
func lineRecord(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "[") {
		line = strings.TrimRight(strings.TrimLeft(strings.TrimRight(line, ","), "["), "]")

		var row []string
		if err := json.Unmarshal([]byte("["+line+"]"), &row); err == nil {
			if len(row) == 0 || row[0] == headerField {
				return "", false
			}
			line = row[0]
		} else {
			line = strings.Trim(strings.SplitN(line, ",", 2)[0], `"`)
		}
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

func parseJSONRows(body string) ([]string, bool) {
	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(body), &rows); err != nil {
		return nil, false
	}

	records := make([]string, 0, len(rows))
	for i, raw := range rows {
		var row []string
		if err := json.Unmarshal(raw, &row); err != nil || len(row) == 0 {
			continue
		}
		if i == 0 && row[0] == headerField {
			continue
		}
		records = append(records, row[0])
	}
	return records, true
}

// ExtractHost returns the host part of a record
func ExtractHost(record string) (string, bool) {
	match := hostRegex.FindStringSubmatch(strings.TrimSpace(record))
	if match == nil || match[1] == "" {
		return "", false
	}
	return match[1], true
}

// Extract turns raw records into the unique hostnames under apex.
// Records that do not normalize are skipped.
func Extract(records []string, apex entity.ApexDomain, normalizer service.HostnameNormalizer) mapset.Set[entity.Hostname] {
	hosts := mapset.NewSet[entity.Hostname]()
	for _, record := range records {
		raw, ok := ExtractHost(record)
		if !ok {
			continue
		}
		host, err := normalizer.Normalize(raw, apex)
		if err != nil {
			continue
		}
		hosts.Add(host)
	}
	return hosts
}
