package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const embedDimension = 256

type incidentTemplate struct {
	short       string
	description string
	resolution  string
	category    string
	subcategory string
	group       string
	hours       int
}

var templates = []incidentTemplate{
	{"VPN disconnects every few minutes", "Remote user loses the VPN tunnel repeatedly while working from home.", "Reinstalled the VPN client and reset the tunnel profile.", "Network", "VPN", "Network Operations", 3},
	{"Password reset request", "User locked out of their account after too many failed login attempts.", "Unlocked the account and issued a temporary password reset.", "Access", "Password", "Service Desk", 1},
	{"Outlook not syncing mailbox", "Outlook stuck on updating folders, mailbox not syncing new mail.", "Rebuilt the Outlook profile and cleared the offline mailbox cache.", "Email", "Outlook", "Messaging", 4},
	{"Printer jams on duplex jobs", "Floor printer jams every time a duplex print job is sent.", "Replaced the duplex roller assembly and cleaned the paper path.", "Hardware", "Printer", "Desktop Support", 24},
	{"Disk space low on application server", "Monitoring alert for low disk space on the application server volume.", "Rotated application logs and extended the data volume.", "Infrastructure", "Storage", "Platform", 6},
}

var priorities = []string{"2 - High", "3 - Moderate", "4 - Low"}

var oddities = []string{
	"Badge reader at loading dock rejects valid cards",
	"Conference room projector shows no signal",
	"Expense tool rounding error on foreign receipts",
	"Coffee machine firmware update request",
}

func generateIncidents(count int, now time.Time) []map[string]any {
	rng := rand.New(rand.NewPCG(42, 7))
	incidents := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		created := now.Add(-time.Duration(rng.IntN(80*24)) * time.Hour)
		number := fmt.Sprintf("INC%07d", 1000+i)

		if i%9 == 8 {
			text := oddities[rng.IntN(len(oddities))]
			incidents = append(incidents, map[string]any{
				"number":            number,
				"short_description": text,
				"description":       text + " reported by a single user.",
				"category":          "Inquiry",
				"close_notes":       "Handled ad hoc by the service desk.",
				"priority":          "4 - Low",
				"sys_created_on":    created.Format("2006-01-02 15:04:05"),
				"resolved_at":       created.Add(2 * time.Hour).Format("2006-01-02 15:04:05"),
			})
			continue
		}

		tpl := templates[rng.IntN(len(templates))]
		resolved := created.Add(time.Duration(tpl.hours+rng.IntN(tpl.hours+1)) * time.Hour)
		incidents = append(incidents, map[string]any{
			"number":            number,
			"short_description": tpl.short,
			"description":       tpl.description,
			"category":          tpl.category,
			"subcategory":       tpl.subcategory,
			"priority":          priorities[rng.IntN(len(priorities))],
			"assignment_group":  map[string]any{"display_value": tpl.group, "link": "https://mock/api/now/table/sys_user_group"},
			"resolution_notes":  tpl.resolution,
			"sys_created_on":    created.Format("2006-01-02 15:04:05"),
			"resolved_at":       resolved.Format("2006-01-02 15:04:05"),
			"closed_at":         resolved.Add(24 * time.Hour).Format("2006-01-02 15:04:05"),
		})
	}
	return incidents
}

// embed hashes lowercase word tokens into a fixed-size bag-of-words vector.
func embed(text string) []float32 {
	vec := make([]float32, embedDimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%embedDimension]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	count := flag.Int("incidents", 120, "number of synthetic incidents to serve")
	flag.Parse()

	incidents := generateIncidents(*count, time.Now().UTC())

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/now/table/incident", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("sysparm_offset"))
		limit, err := strconv.Atoi(r.URL.Query().Get("sysparm_limit"))
		if err != nil || limit <= 0 {
			limit = 100
		}
		if offset > len(incidents) {
			offset = len(incidents)
		}
		end := offset + limit
		if end > len(incidents) {
			end = len(incidents)
		}
		writeJSON(w, map[string]any{"result": incidents[offset:end]})
	})

	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var req struct {
			Model string `json:"model"`
			Input any    `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var inputs []string
		switch v := req.Input.(type) {
		case string:
			inputs = []string{v}
		case []any:
			for _, item := range v {
				s, _ := item.(string)
				inputs = append(inputs, s)
			}
		}
		embeddings := make([][]float32, len(inputs))
		for i, text := range inputs {
			embeddings[i] = embed(text)
		}
		writeJSON(w, map[string]any{"model": req.Model, "embeddings": embeddings})
	})

	logger := log.New(log.Writer(), "ticketing-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    *addr,
		Handler: logRequests(logger, mux),
	}

	logger.Printf("listening on %s with %d incidents", *addr, len(incidents))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
