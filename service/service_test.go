package service

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestID_String(t *testing.T) {
	tests := []struct {
		id   ID
		want string
	}{
		{Completion, "completion"},
		{VectorSearch, "vectorSearch"},
		{Documentation, "documentation"},
		{ID(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("ID(%d).String() = %q, want %q", int(tt.id), got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		want    ID
		wantErr bool
	}{
		{"completion", Completion, false},
		{"vectorSearch", VectorSearch, false},
		{"vector_search", VectorSearch, false},
		{"VECTORSEARCH", VectorSearch, false},
		{" documentation ", Documentation, false},
		{"llm", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknown) {
					t.Errorf("Parse(%q) error = %v, want ErrUnknown", tt.name, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	ids := All()
	if len(ids) != 3 {
		t.Fatalf("len(All()) = %d, want 3", len(ids))
	}
	ids[0] = Documentation
	if All()[0] != Completion {
		t.Error("All() exposed internal slice")
	}
}

func TestID_JSON(t *testing.T) {
	data, err := json.Marshal(map[ID]int{VectorSearch: 1})
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(data) != `{"vectorSearch":1}` {
		t.Errorf("Marshal = %s, want {\"vectorSearch\":1}", data)
	}

	var decoded map[ID]int
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if decoded[VectorSearch] != 1 {
		t.Errorf("decoded[VectorSearch] = %d, want 1", decoded[VectorSearch])
	}
}
