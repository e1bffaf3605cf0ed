// File: cmd/analytics/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"Options_Analytics/internal/calendar"
	"Options_Analytics/internal/config"
	"Options_Analytics/internal/data"
	"Options_Analytics/internal/feed"
	"Options_Analytics/internal/fix"
	"Options_Analytics/internal/master"
	"Options_Analytics/internal/model"
	"Options_Analytics/internal/notify"
	"Options_Analytics/internal/servers"
	"Options_Analytics/internal/service"
)

func main() {
	config.LoadEnv()
	cfg := config.FromEnv()

	contractsPath := os.Getenv("CONTRACTS_FILE")
	if contractsPath == "" {
		contractsPath = "config/contracts.json"
	}
	lookup, err := master.LoadFile(contractsPath)
	if err != nil {
		log.Fatalf("[MAIN] contract master load failed: %v", err)
	}

	fo := data.NewPriceStore()
	cm := data.NewPriceStore()
	svc := service.New(cfg, lookup, calendar.NewNSE(), fo, cm)
	svc.Start()

	servers.ServeGreeksHTTP(svc, lookup)

	// Optional Telegram failure digest
	if ntf, err := notify.NewTelegramFromEnv(); err == nil {
		digest := notify.NewFailureDigest(ntf, time.Minute)
		go digest.Run(context.Background(), svc.SubscribeFailures(256))
	} else {
		log.Println("[MAIN] Telegram notifier disabled:", err)
	}

	stopFeed := make(chan struct{})
	switch strings.ToLower(os.Getenv("FEED_MODE")) {
	case "fix":
		app := fix.NewApp(lookup, svc, feedSymbols(), model.SegmentNSEFO)
		if err := fix.InitFIXEngine("config/quickfix.cfg", app); err != nil {
			log.Printf("[FIX] Init failed: %v", err)
		}
		defer fix.StopFIXEngine()
	case "none":
		log.Println("[MAIN] running without a live feed")
	default:
		url := os.Getenv("FEED_WS_URL")
		if url == "" {
			log.Fatal("[MAIN] FEED_WS_URL not set")
		}
		apiToken := os.Getenv("FEED_API_TOKEN")
		if apiToken == "" {
			tok, err := feed.Login(os.Getenv("FEED_LOGIN_URL"), os.Getenv("FEED_APP_KEY"), os.Getenv("FEED_SECRET_KEY"))
			if err != nil {
				log.Fatalf("[MAIN] feed login failed: %v", err)
			}
			apiToken = tok
		}
		go feed.ConnectAndServe(url, apiToken, feedSubscriptions(), svc, stopFeed)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc

	close(stopFeed)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		log.Printf("[MAIN] shutdown incomplete: %v", err)
	}
	log.Println("[MAIN] Shutting down...")
}

// feedSymbols reads the FIX subscription list: one symbol per line.
func feedSymbols() []string {
	path := os.Getenv("FEED_SYMBOLS_FILE")
	if path == "" {
		path = "config/symbols.txt"
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[MAIN] no symbols file (%v); subscribing to nothing", err)
		return nil
	}
	var out []string
	for _, line := range strings.Split(string(raw), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// feedSubscriptions reads the websocket subscription list: "segment,token"
// per line.
func feedSubscriptions() []feed.Subscription {
	path := os.Getenv("FEED_TOKENS_FILE")
	if path == "" {
		path = "config/tokens.txt"
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[MAIN] no tokens file (%v); subscribing to nothing", err)
		return nil
	}
	var out []feed.Subscription
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			log.Printf("[MAIN] bad tokens line %q", line)
			continue
		}
		seg, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		tok, err2 := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 32)
		if err1 != nil || err2 != nil {
			log.Printf("[MAIN] bad tokens line %q", line)
			continue
		}
		out = append(out, feed.Subscription{ExchangeSegment: seg, Token: uint32(tok)})
	}
	return out
}
