package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/semsproject/sems-client/internal/errors"
	"github.com/semsproject/sems-client/internal/models"
)

func TestCreateRequestShape(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"message":"created","record":{"id":12}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.Create(context.Background(), Credentials{Token: "secret"}, models.FamilyDispense, map[string]string{"drugId": "x"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/api/dispenses" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if !resp.Success || resp.Record == nil || resp.Record.ID != 12 {
		t.Errorf("response = %+v", resp)
	}
}

func TestUpdateRequestShape(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Write([]byte(`{"success":true,"message":"updated","record":{"id":42}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	payload := &ticketUpdate{ID: 42, Status: "resolved"}
	if _, err := c.Update(context.Background(), Credentials{}, models.FamilyTicket, payload); err != nil {
		t.Fatalf("Update: %v", err)
	}
	// Updates go to the bare resource path; the id travels in the body.
	if gotMethod != http.MethodPut || gotPath != "/api/tickets" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}

func TestCredentialsSuppliedPerRequest(t *testing.T) {
	var auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		w.Write([]byte(`{"success":true,"message":"created","record":{"id":1}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Create(context.Background(), Credentials{Token: "first"}, models.FamilyDispense, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Create(context.Background(), Credentials{Token: "second"}, models.FamilyDispense, nil); err != nil {
		t.Fatal(err)
	}

	want := []string{"Bearer first", "Bearer second"}
	if len(auths) != 2 || auths[0] != want[0] || auths[1] != want[1] {
		t.Errorf("auth headers = %v, want %v", auths, want)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status    int
		wantCode  errors.ErrorCode
		retryable bool
	}{
		{http.StatusInternalServerError, errors.ErrSyncFailed, true},
		{http.StatusBadGateway, errors.ErrSyncFailed, true},
		{http.StatusUnauthorized, errors.ErrSyncAuthFailed, false},
		{http.StatusForbidden, errors.ErrSyncAuthFailed, false},
		{http.StatusBadRequest, errors.ErrSyncRejected, false},
		{http.StatusUnprocessableEntity, errors.ErrSyncRejected, false},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(`{"success":false,"message":"nope"}`))
		}))

		c := NewClient(srv.URL)
		_, err := c.Create(context.Background(), Credentials{Token: "t"}, models.FamilyDispense, nil)
		if err == nil {
			t.Errorf("status %d: no error", tc.status)
		} else {
			if errors.Code(err) != tc.wantCode {
				t.Errorf("status %d: code = %s, want %s", tc.status, errors.Code(err), tc.wantCode)
			}
			if IsRetryable(err) != tc.retryable {
				t.Errorf("status %d: retryable = %v, want %v", tc.status, IsRetryable(err), tc.retryable)
			}
		}
		srv.Close()
	}
}

func TestNetworkFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := NewClient(srv.URL)
	_, err := c.Create(context.Background(), Credentials{Token: "t"}, models.FamilyDispense, nil)
	if err == nil {
		t.Fatal("no error against closed server")
	}
	if !IsRetryable(err) {
		t.Errorf("network failure not retryable: %v", err)
	}
	if errors.Code(err) != errors.ErrSyncTimeout {
		t.Errorf("code = %s", errors.Code(err))
	}
}

func TestServerMessageSurfacesInError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"message":"dose exceeds maximum"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Create(context.Background(), Credentials{Token: "t"}, models.FamilyDispense, nil)
	if err == nil {
		t.Fatal("no error")
	}
	if got := err.Error(); !strings.Contains(got, "dose exceeds maximum") {
		t.Errorf("error missing server message: %s", got)
	}
}
