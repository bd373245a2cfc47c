package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, target string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "/", DefaultLimit, 0},
		{"custom", "/?limit=10&offset=30", 10, 30},
		{"max limit", "/?limit=100000", MaxLimit, 0},
		{"negative offset", "/?offset=-5", DefaultLimit, 0},
		{"garbage", "/?limit=abc&offset=xyz", DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := paramsFor(t, tt.target)
			if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
				t.Errorf("got %+v, want limit=%d offset=%d", p, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 5, Params{Limit: 2, Offset: 0})
	if resp.Total != 5 || !resp.HasMore {
		t.Errorf("unexpected response %+v", resp)
	}

	last := NewResponse([]string{"e"}, 5, Params{Limit: 2, Offset: 4})
	if last.HasMore {
		t.Error("last page should not report more")
	}
}

func TestNewResponse_EmptyEncodesArray(t *testing.T) {
	raw, err := json.Marshal(NewResponse[int](nil, 0, Params{Limit: 10}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"data":[]`) {
		t.Errorf("expected empty array, got %s", raw)
	}
	if !strings.Contains(string(raw), `"hasMore":false`) {
		t.Errorf("expected camelCase hasMore, got %s", raw)
	}
}

func TestParams_NextOffset(t *testing.T) {
	p := Params{Limit: 10, Offset: 5}
	if p.NextOffset() != 15 {
		t.Errorf("NextOffset = %d", p.NextOffset())
	}
	if !p.HasNext(16) || p.HasNext(15) {
		t.Error("HasNext should report only records past the page")
	}
}
