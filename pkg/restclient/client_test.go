package restclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInstrumentsParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/instruments" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"result":{"instruments":[
			{"symbol":"BTC/USD","price_precision":1,"qty_precision":8,"qty_min":"0.0001","price_increment":"0.1","status":"online"}
		]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	instruments, err := c.Instruments(context.Background())
	if err != nil {
		t.Fatalf("Instruments: %v", err)
	}
	if len(instruments) != 1 || instruments[0].Symbol != "BTC/USD" {
		t.Fatalf("unexpected result: %+v", instruments)
	}

	m := PrecisionMap(instruments)
	p, ok := m["BTC/USD"]
	if !ok || p.PriceScale != 1 || p.QtyScale != 8 {
		t.Fatalf("unexpected precision map: %+v", m)
	}
}

func TestInstrumentsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Instruments(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
