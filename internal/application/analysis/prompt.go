package analysis

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
)

// DefaultPrompt se usa cuando no hay archivo de prompt.
const DefaultPrompt = `You are a professional investment advisor and portfolio analyst. ` +
	`Please analyze the provided portfolio data and reports comprehensively from {input_directories}. ` +
	`Please provide a detailed, professional report with specific recommendations for portfolio ` +
	`optimization and risk management. Format your response in markdown with clear sections and ` +
	`bullet points for easy readability.`

const placeholder = "{input_directories}"

// DefaultMaxFileBytes limita cada documento adjunto.
const DefaultMaxFileBytes = 256 << 10

var documentExts = []string{".csv", ".xml", ".json", ".md", ".txt"}

// LoadPrompt lee el prompt de path o devuelve DefaultPrompt si no existe,
// y sustituye {input_directories} por los directorios separados por comas.
func LoadPrompt(path string, dirs []string) (string, error) {
	prompt := DefaultPrompt
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			prompt = string(data)
		case errors.Is(err, fs.ErrNotExist):
			slog.Warn("prompt file not found, using default prompt", "path", path)
		default:
			return "", fmt.Errorf("analysis.LoadPrompt: %w", err)
		}
	}
	return strings.ReplaceAll(prompt, placeholder, strings.Join(dirs, ",")), nil
}

// CollectDocuments lee los archivos de texto de primer nivel de cada
// directorio, truncando cada uno a maxBytes.
func CollectDocuments(dirs []string, maxBytes int) ([]domain.Document, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}

	var docs []domain.Document
	seen := make(map[string]bool)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("analysis.CollectDocuments: read %q: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !slices.Contains(documentExts, strings.ToLower(filepath.Ext(e.Name()))) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if seen[path] {
				continue
			}
			seen[path] = true

			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("analysis.CollectDocuments: read %q: %w", path, err)
			}
			if len(data) > maxBytes {
				slog.Debug("document truncated", "path", path, "bytes", len(data), "max", maxBytes)
				data = data[:maxBytes]
			}
			docs = append(docs, domain.Document{Path: path, Content: string(data)})
		}
	}
	return docs, nil
}
