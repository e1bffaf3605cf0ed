// File: internal/servers/greeks_http.go
package servers

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"Options_Analytics/internal/config"
	"Options_Analytics/internal/master"
	"Options_Analytics/internal/model"
	"Options_Analytics/internal/service"
)

type greeksHTTPMsg struct {
	Token        uint32  `json:"token"`
	IV           float64 `json:"iv"`
	Delta        float64 `json:"delta"`
	Gamma        float64 `json:"gamma"`
	Vega         float64 `json:"vega"`
	Theta        float64 `json:"theta"`
	Rho          float64 `json:"rho"`
	TheoPrice    float64 `json:"theo_price"`
	Spot         float64 `json:"spot"`
	Strike       float64 `json:"strike"`
	TimeToExpiry float64 `json:"time_to_expiry"`
	OptionPrice  float64 `json:"option_price"`
	Converged    bool    `json:"converged"`
	ComputedAtUs int64   `json:"computed_at_us"`
	LastTradeUs  int64   `json:"last_trade_us"`
}

func toMsg(snap model.CacheSnapshot) greeksHTTPMsg {
	r := snap.Result
	return greeksHTTPMsg{
		Token:        r.Token,
		IV:           r.ImpliedVolatility,
		Delta:        r.Delta,
		Gamma:        r.Gamma,
		Vega:         r.Vega,
		Theta:        r.Theta,
		Rho:          r.Rho,
		TheoPrice:    r.TheoreticalPrice,
		Spot:         r.SpotPrice,
		Strike:       r.StrikePrice,
		TimeToExpiry: r.TimeToExpiry,
		OptionPrice:  r.OptionPrice,
		Converged:    r.Converged,
		ComputedAtUs: r.ComputedAtMicros,
		LastTradeUs:  snap.LastTradeTimeMicros,
	}
}

// chainFilter narrows a listing to one option chain.
type chainFilter struct {
	underlying uint32 // 0 = any
	expiry     string // "2006-01-02", "" = any
}

func (f chainFilter) match(lookup master.Lookup, token uint32) bool {
	if f.underlying == 0 && f.expiry == "" {
		return true
	}
	c, ok := lookup.ByToken(token)
	if !ok {
		return false
	}
	if f.underlying != 0 && c.UnderlyingToken != f.underlying {
		return false
	}
	if f.expiry != "" && c.Expiry.Format("2006-01-02") != f.expiry {
		return false
	}
	return true
}

// ServeGreeksHTTP exposes the cache read-side and two admin verbs.
func ServeGreeksHTTP(svc *service.Service, lookup master.Lookup) {
	addr := strings.TrimSpace(os.Getenv("GREEKS_HTTP_ADDR"))
	if addr == "" {
		addr = "127.0.0.1:7070"
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/greeks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if tok := r.URL.Query().Get("token"); tok != "" {
			n, err := strconv.ParseUint(tok, 10, 32)
			if err != nil {
				http.Error(w, "bad token", http.StatusBadRequest)
				return
			}
			snap, ok := svc.CachedGreeks(uint32(n))
			if !ok {
				http.Error(w, "not calculated", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(toMsg(snap))
			return
		}

		filter := chainFilter{expiry: r.URL.Query().Get("expiry")}
		if u := r.URL.Query().Get("underlying"); u != "" {
			n, err := strconv.ParseUint(u, 10, 32)
			if err != nil {
				http.Error(w, "bad underlying", http.StatusBadRequest)
				return
			}
			filter.underlying = uint32(n)
		}

		all := svc.AllCached()
		out := make([]greeksHTTPMsg, 0, len(all))
		for _, snap := range all {
			if filter.match(lookup, snap.Result.Token) {
				out = append(out, toMsg(snap))
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("/greeks/recalculate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		svc.ForceRecalculateAll()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	mux.HandleFunc("/greeks/config", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()
		var cfg config.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		svc.Reconfigure(cfg)
		svc.ForceRecalculateAll()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	go func() {
		log.Printf("[GREEKS-HTTP] listening on http://%s (GET /greeks)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("[GREEKS-HTTP] server stopped: %v", err)
		}
	}()
}
