package letsched

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
)

const (
	JSON_INDENT     = "    "
	MAX_SYSTEM_FILE = 999
)

var jsonAPI = sonic.ConfigStd

// DecodeSystem parses a system document.
func DecodeSystem(data []byte) (*System, error) {
	var sys System
	if err := jsonAPI.Unmarshal(data, &sys); err != nil {
		return nil, fmt.Errorf("decode system: %w", err)
	}
	return &sys, nil
}

// EncodeSystem renders a system document indented with four spaces.
func EncodeSystem(sys *System) ([]byte, error) {
	data, err := jsonAPI.MarshalIndent(sys, "", JSON_INDENT)
	if err != nil {
		return nil, fmt.Errorf("encode system: %w", err)
	}
	return data, nil
}

func LoadSystem(path string) (*System, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load system: %w", err)
	}
	sys, err := DecodeSystem(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sys, nil
}

// SaveSystem writes sys to path, creating the parent directory if needed.
func SaveSystem(path string, sys *System) error {
	data, err := EncodeSystem(sys)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save system: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save system: %w", err)
	}
	return nil
}

// NextSystemPath returns the first unused dir/base%03d-suffix.json, counting
// from 1, together with its counter.
func NextSystemPath(dir, base, suffix string) (string, int, error) {
	for counter := 1; counter <= MAX_SYSTEM_FILE; counter++ {
		path := filepath.Join(dir, systemFileName(base, counter, suffix))
		_, err := os.Stat(path)
		if os.IsNotExist(err) {
			return path, counter, nil
		}
		if err != nil {
			return "", 0, fmt.Errorf("next system path: %w", err)
		}
	}
	return "", 0, fmt.Errorf("next system path: %s has no free %s slot", dir, base)
}

func systemFileName(base string, counter int, suffix string) string {
	return fmt.Sprintf("%s%03d-%s.json", base, counter, suffix)
}
