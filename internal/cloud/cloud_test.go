// SPDX-License-Identifier: MPL-2.0

package cloud

import (
	"encoding/json"
	"testing"
)

func TestExecutionTrustPolicy_IsValidJSON(t *testing.T) {
	t.Parallel()

	var doc struct {
		Version   string `json:"Version"`
		Statement []struct {
			Effect    string `json:"Effect"`
			Principal struct {
				Service string `json:"Service"`
			} `json:"Principal"`
			Action string `json:"Action"`
		} `json:"Statement"`
	}
	if err := json.Unmarshal([]byte(ExecutionTrustPolicy), &doc); err != nil {
		t.Fatalf("trust policy is not valid JSON: %v", err)
	}

	if doc.Version != "2012-10-17" {
		t.Errorf("Version = %q", doc.Version)
	}
	if len(doc.Statement) != 1 {
		t.Fatalf("Statement count = %d, want 1", len(doc.Statement))
	}
	st := doc.Statement[0]
	if st.Effect != "Allow" || st.Action != "sts:AssumeRole" {
		t.Errorf("statement = %+v", st)
	}
	if st.Principal.Service != "lambda.amazonaws.com" {
		t.Errorf("principal service = %q", st.Principal.Service)
	}
}

func TestInvokeURL(t *testing.T) {
	t.Parallel()

	got := InvokeURL("a1b2c3", "eu-west-1", "default")
	want := "https://a1b2c3.execute-api.eu-west-1.amazonaws.com/default"
	if got != want {
		t.Errorf("InvokeURL() = %q, want %q", got, want)
	}
}

func TestInvokePermissionSource(t *testing.T) {
	t.Parallel()

	got := InvokePermissionSource("us-east-1", "123456789012", "a1b2c3")
	want := "arn:aws:execute-api:us-east-1:123456789012:a1b2c3/*/*"
	if got != want {
		t.Errorf("InvokePermissionSource() = %q, want %q", got, want)
	}
}
