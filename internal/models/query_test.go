package models

import (
	"encoding/json"
	"testing"

	"github.com/hyperjump/ragdoc/internal/apperr"
)

func TestAskRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *AskRequest
		want    string
		wantErr bool
	}{
		{"empty question", &AskRequest{Question: ""}, "", true},
		{"whitespace only", &AskRequest{Question: " \n\t "}, "", true},
		{"trims", &AskRequest{Question: "  what is RAG?  "}, "what is RAG?", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !apperr.IsInvalidParameter(err) {
				t.Errorf("expected invalid parameter, got %v", err)
			}
			if !tt.wantErr && tt.req.Question != tt.want {
				t.Errorf("Question = %q, want %q", tt.req.Question, tt.want)
			}
		})
	}
}

func TestMetadata_Int(t *testing.T) {
	var decoded Metadata
	if err := json.Unmarshal([]byte(`{"chunk_index": 3}`), &decoded); err != nil {
		t.Fatal(err)
	}
	m := Metadata{"a": 1, "b": int64(2), "s": "x"}
	for key, want := range map[string]int{"a": 1, "b": 2} {
		if got, ok := m.Int(key); !ok || got != want {
			t.Errorf("Int(%q) = %d, %v", key, got, ok)
		}
	}
	if got, ok := decoded.Int(MetaChunkIndex); !ok || got != 3 {
		t.Errorf("decoded chunk_index = %d, %v", got, ok)
	}
	if _, ok := m.Int("s"); ok {
		t.Error("string value should not parse as int")
	}
	if _, ok := m.Int("missing"); ok {
		t.Error("missing key should report false")
	}
}

func TestMetadata_Clone(t *testing.T) {
	var nilMeta Metadata
	c := nilMeta.Clone()
	if c == nil {
		t.Fatal("clone of nil should be an empty map")
	}
	orig := Metadata{"k": "v"}
	cp := orig.Clone()
	cp["k"] = "changed"
	if orig["k"] != "v" {
		t.Error("clone must not share storage with the original")
	}
}
