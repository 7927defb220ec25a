// Smoke test against a running stack: registers a user, submits an essay,
// and polls until the correction completes or the wait budget runs out.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

type tokenResp struct {
	AccessToken string `json:"access_token"`
}

type acceptedResp struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type submissionResp struct {
	ID           string         `json:"id"`
	Theme        string         `json:"theme"`
	Status       string         `json:"status"`
	Result       map[string]any `json:"result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

const sampleEssay = `In contemporary Brazilian society, the debate around digital inclusion has gained
prominence. Although access to the internet has expanded in recent decades, a significant
share of the population remains excluded from the digital environment, which deepens
existing social inequalities. It is therefore necessary to analyze the causes of this
exclusion and the paths to overcome it.

First, the territorial dimension of the problem stands out. Rural areas and urban
peripheries concentrate most households without quality connection, a reflection of
infrastructure investments guided by profit rather than by the universalization of rights.
As the sociologist Manuel Castells argues, exclusion from digital networks is one of the
most damaging forms of exclusion in the information age.

Moreover, access alone is not enough: digital literacy is indispensable. Many citizens
who technically have a connection lack the skills to use public services, study or work
through digital means, which perpetuates their vulnerability.

Therefore, the federal government, through the Ministry of Communications, should expand
connectivity infrastructure in underserved regions by financing community networks and
reinvesting spectrum auction proceeds, while schools and civil society organizations
promote digital literacy programs with defined curricula and trained instructors, so that
digital inclusion becomes an effective instrument of citizenship.`

func main() {
	base := envOr("API_BASE_URL", "http://localhost:8000")

	baseFlag := flag.String("base", base, "API base URL (e.g., http://localhost:8000)")
	wait := flag.Duration("wait", 5*time.Minute, "How long to poll for the correction result")
	flag.Parse()

	httpc := &http.Client{Timeout: 12 * time.Second}

	// 1) Register a throwaway user
	email := fmt.Sprintf("smoke-%s@example.com", uuid.NewString()[:8])
	if err := postJSON(httpc, *baseFlag+"/api/v1/auth/register", "", map[string]any{
		"email":    email,
		"password": "smoke-secret",
		"name":     "Smoke Tester",
	}, &map[string]any{}); err != nil {
		fatalf("register: %v", err)
	}
	fmt.Printf("✅ Registered user: %s\n", email)

	// 2) Login
	var tok tokenResp
	if err := postJSON(httpc, *baseFlag+"/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": "smoke-secret",
	}, &tok); err != nil {
		fatalf("login: %v", err)
	}
	fmt.Println("✅ Logged in")

	// 3) Submit essay
	var accepted acceptedResp
	if err := postJSON(httpc, *baseFlag+"/api/v1/essays", tok.AccessToken, map[string]any{
		"theme":      "The challenge of digital inclusion in Brazil",
		"essay_text": sampleEssay,
	}, &accepted); err != nil {
		fatalf("submit essay: %v", err)
	}
	fmt.Printf("✅ Submitted essay: id=%s status=%s\n", accepted.ID, accepted.Status)

	// 4) Poll for the result
	deadline := time.Now().Add(*wait)
	var sub submissionResp
	for {
		if err := getJSON(httpc, fmt.Sprintf("%s/api/v1/essays/%s", *baseFlag, accepted.ID), tok.AccessToken, &sub); err != nil {
			fatalf("get submission: %v", err)
		}
		if sub.Status == "COMPLETED" {
			fmt.Printf("✅ Correction complete:\n%s\n", compactJSON(sub.Result))
			break
		}
		if sub.Status == "FAILED" {
			fatalf("correction failed: %s", sub.ErrorMessage)
		}
		if time.Now().After(deadline) {
			fmt.Printf("ℹ️  Correction still %s after %s (graders may be rate limited).\n", sub.Status, *wait)
			break
		}
		time.Sleep(5 * time.Second)
	}

	fmt.Printf("🎉 Smoke run OK. SubmissionID=%s\n", accepted.ID)
}

// --- helpers ---

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func postJSON(c *http.Client, url, bearer string, body any, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, r)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("POST %s -> %d: %s", url, res.StatusCode, string(b))
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func getJSON(c *http.Client, url, bearer string, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("GET %s -> %d: %s", url, res.StatusCode, string(b))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func compactJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func fatalf(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}
