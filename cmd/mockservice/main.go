// Mock service that simulates a monitored host for local testing
// Usage: go run ./cmd/mockservice -port 9090
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"
)

var (
	port     = flag.Int("port", 9090, "HTTP port to listen on")
	tcpPort  = flag.Int("tcp", 9091, "TCP port to listen on (0 to disable)")
	failRate = flag.Int("fail", 10, "Percent of requests that fail")
	slowMs   = flag.Int("slow", 2500, "Latency of the /slow endpoint in milliseconds")
)

// Simulated service state
type serviceState struct {
	mu      sync.Mutex
	healthy bool
}

var state = &serviceState{healthy: true}

func main() {
	flag.Parse()

	// Flip overall health occasionally to exercise status transitions
	go func() {
		for {
			time.Sleep(30 * time.Second)
			state.mu.Lock()
			if rand.Intn(5) == 0 {
				state.healthy = !state.healthy
				log.Printf("Mock service healthy=%v", state.healthy)
			}
			state.mu.Unlock()
		}
	}()

	if *tcpPort > 0 {
		go serveTCP(*tcpPort)
	}

	http.HandleFunc("/", rootHandler)
	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/slow", slowHandler)
	http.HandleFunc("/flaky", flakyHandler)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock service starting on %s", addr)
	log.Printf("Configure lookout with host: localhost and port %d", *port)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	state.mu.Lock()
	healthy := state.healthy
	state.mu.Unlock()

	if !healthy {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprintln(w, "mock service operational")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	state.mu.Lock()
	healthy := state.healthy
	state.mu.Unlock()

	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, `{"status":"DOWN"}`)
		return
	}
	fmt.Fprintln(w, `{"status":"UP"}`)
}

func slowHandler(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(*slowMs) * time.Millisecond)
	fmt.Fprintln(w, "finally")
}

func flakyHandler(w http.ResponseWriter, r *http.Request) {
	if rand.Intn(100) < *failRate {
		http.Error(w, "intermittent failure", http.StatusInternalServerError)
		return
	}
	fmt.Fprintln(w, "ok this time")
}

func serveTCP(port int) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		log.Printf("TCP listener failed: %v", err)
		return
	}
	log.Printf("Mock TCP service on :%d", port)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go func(c net.Conn) {
			defer c.Close()
			fmt.Fprintln(c, "220 mockservice ready")
			buf := make([]byte, 64)
			c.SetReadDeadline(time.Now().Add(5 * time.Second))
			c.Read(buf)
		}(conn)
	}
}
