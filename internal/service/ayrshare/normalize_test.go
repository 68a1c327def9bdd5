package ayrshare

import "testing"

func TestExtractFailure_FieldPriority(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		transportOK bool
		body        string
		want        string
	}{
		{
			name: "non-2xx prefers message", statusCode: 400, transportOK: false,
			body: `{"message":"bad request","error":"secondary"}`,
			want: "bad request",
		},
		{
			name: "non-2xx falls back to error", statusCode: 401, transportOK: false,
			body: `{"error":"unauthorized"}`,
			want: "unauthorized",
		},
		{
			name: "non-2xx with empty body", statusCode: 500, transportOK: false,
			body: `{}`,
			want: "Request failed (500)",
		},
		{
			name: "non-2xx with non-string error field", statusCode: 400, transportOK: false,
			body: `{"error":{"code":156}}`,
			want: "Request failed (400)",
		},
		{
			name: "2xx joins error list", statusCode: 200, transportOK: true,
			body: `{"status":"error","errors":[{"message":"first"},{"message":"second"}]}`,
			want: "first, second",
		},
		{
			name: "2xx error list of bare strings", statusCode: 200, transportOK: true,
			body: `{"status":"error","errors":["plain failure"]}`,
			want: "plain failure",
		},
		{
			name: "2xx falls back to message", statusCode: 200, transportOK: true,
			body: `{"status":"error","message":"soft failure"}`,
			want: "soft failure",
		},
		{
			name: "2xx with nothing usable", statusCode: 200, transportOK: true,
			body: `{"status":"error"}`,
			want: "Post failed",
		},
		{
			name: "2xx empty error entries skipped", statusCode: 200, transportOK: true,
			body: `{"status":"error","errors":[{},{}],"message":"fallback"}`,
			want: "fallback",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := parseResponse([]byte(tc.body))
			if got := extractFailure(tc.statusCode, tc.transportOK, resp); got != tc.want {
				t.Fatalf("extractFailure = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractFailure_UnparseableBody(t *testing.T) {
	if got := extractFailure(503, false, parseResponse([]byte("gateway timeout"))); got != "Request failed (503)" {
		t.Fatalf("non-2xx unparseable: got %q", got)
	}
	if got := extractFailure(200, true, parseResponse([]byte("not json"))); got != "Post failed" {
		t.Fatalf("2xx unparseable: got %q", got)
	}
}
