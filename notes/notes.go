// Package notes creates the training-notes document for a new session from
// a template.
package notes

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lukasjarosch/go-docx"
)

var ErrTemplateMissing = errors.New("notes template not found")

const (
	docxBody   = "word/document.xml"
	dateLayout = "2006-01-02"
)

// Fields are the values substituted into a template.
type Fields struct {
	Name     string
	Training string
	Date     time.Time
}

func (f Fields) values() map[string]string {
	return map[string]string{
		"Name":     f.Name,
		"Training": f.Training,
		"Date":     f.Date.Format(dateLayout),
	}
}

// OutputName is the notes file name for a training, keeping the template's
// extension.
func OutputName(template, training string) string {
	return training + "_training_notes" + filepath.Ext(template)
}

// Fill writes the filled template into folder and returns the new file's
// path. .docx templates have their placeholders replaced in the document
// body; any other template is treated as text.
func Fill(template, folder string, f Fields) (string, error) {
	if _, err := os.Stat(template); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrTemplateMissing, template)
		}
		return "", err
	}

	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(template), ".docx") {
		data, err = fillDocx(template, f)
	} else {
		data, err = fillText(template, f)
	}
	if err != nil {
		return "", fmt.Errorf("fill %s: %w", filepath.Base(template), err)
	}

	out := filepath.Join(folder, OutputName(template, f.Training))
	if err := writeAtomic(out, data); err != nil {
		return "", fmt.Errorf("write notes: %w", err)
	}
	return out, nil
}

func fillText(template string, f Fields) ([]byte, error) {
	data, err := os.ReadFile(template)
	if err != nil {
		return nil, err
	}
	var pairs []string
	for key, value := range f.values() {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return []byte(strings.NewReplacer(pairs...).Replace(string(data))), nil
}

// fillDocx replaces the placeholders in the document body, headers and
// footers, including placeholders Word split across several runs.
func fillDocx(template string, f Fields) ([]byte, error) {
	if err := requireBody(template); err != nil {
		return nil, err
	}

	doc, err := docx.Open(template)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	placeholders := docx.PlaceholderMap{}
	for key, value := range f.values() {
		placeholders[key] = value
	}
	if err := doc.ReplaceAll(placeholders); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func requireBody(template string) error {
	r, err := zip.OpenReader(template)
	if err != nil {
		return err
	}
	defer r.Close()
	for _, entry := range r.File {
		if entry.Name == docxBody {
			return nil
		}
	}
	return fmt.Errorf("%s not found in archive", docxBody)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".notes-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
