package main

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/address-geocoder/internal/detect"
)

const utf8BOM = "\ufeff"

// input địa chỉ đọc từ file và cột đã dùng (rỗng với file text)
type input struct {
	Addresses []string
	Column    string
	Detection *detect.Detection
}

// readInputFile đọc .csv (dòng đầu là header) hoặc file text mỗi dòng một địa chỉ
func readInputFile(path, column string) (*input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("không mở được file input: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return readCSV(f, column)
	}
	return readLines(f)
}

func readCSV(r io.Reader, column string) (*input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte(utf8BOM))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("lỗi đọc CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file CSV rỗng")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		rows = append(rows, row)
	}

	in := &input{}
	switch {
	case column != "":
		if !detect.HasColumn(headers, column) {
			return nil, fmt.Errorf("không có cột %q, các cột: %s", column, strings.Join(headers, ", "))
		}
		in.Column = column
	default:
		det := detect.Detect(headers, rows)
		if det == nil || !det.Auto {
			return nil, fmt.Errorf("không tự xác định được cột địa chỉ, dùng --column (ứng viên: %s)", candidateNames(headers, rows))
		}
		in.Column = det.Column
		in.Detection = det
	}

	in.Addresses = detect.Column(rows, in.Column)
	return in, nil
}

func readLines(r io.Reader) (*input, error) {
	in := &input{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, utf8BOM)
			first = false
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		in.Addresses = append(in.Addresses, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("lỗi đọc file: %w", err)
	}
	return in, nil
}

func candidateNames(headers []string, rows []map[string]string) string {
	candidates := detect.Candidates(headers, rows)
	if len(candidates) == 0 {
		return "không có"
	}
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = fmt.Sprintf("%s (%.0f)", c.Name, c.Confidence)
	}
	return strings.Join(names, ", ")
}
