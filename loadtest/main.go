package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
)

const (
	BaseURL   = "http://localhost:8080"
	UserCount = 100 // concurrent users; start small, the DB pool is bounded
	MsgCount  = 20  // messages per user
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type roomResponse struct {
	ID int `json:"id"`
}

var failures atomic.Int64

func main() {
	log.Printf("starting load test: %d users, %d messages each", UserCount, MsgCount)
	var wg sync.WaitGroup

	for i := 0; i < UserCount; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			runUser(userID)
		}(i)
	}

	wg.Wait()
	log.Printf("load test complete: %d failures", failures.Load())
}

func runUser(userID int) {
	email := fmt.Sprintf("load_%d@example.com", userID)
	pass := "password123"

	token := authenticate(email, pass)
	if token == "" {
		failures.Add(1)
		return
	}

	roomID := createRoom(token, fmt.Sprintf("load room %d", userID))
	if roomID == 0 {
		failures.Add(1)
		return
	}

	if !doPost(token, fmt.Sprintf("/api/rooms/%d/join", roomID), nil) {
		failures.Add(1)
		return
	}

	for i := 0; i < MsgCount; i++ {
		body := map[string]string{"content": fmt.Sprintf("message %d from user %d", i, userID)}
		if !doPost(token, fmt.Sprintf("/api/rooms/%d/messages", roomID), body) {
			failures.Add(1)
		}
	}

	// Read back a page, then leave.
	req, _ := http.NewRequest("GET", fmt.Sprintf("%s/api/rooms/%d/messages?limit=50", BaseURL, roomID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if resp, err := http.DefaultClient.Do(req); err == nil {
		resp.Body.Close()
	}

	if !doPost(token, fmt.Sprintf("/api/rooms/%d/leave", roomID), nil) {
		failures.Add(1)
	}
}

// authenticate registers (ignoring duplicate errors on reruns) and
// logs in, returning the access token.
func authenticate(email, password string) string {
	postJSON("/api/auth/register", map[string]string{
		"email":        email,
		"display_name": "Load Tester",
		"password":     password,
	})

	resp, err := postJSON("/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		log.Printf("login failed [%s]: %v", email, err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("login failed [%s]: status %d", email, resp.StatusCode)
		return ""
	}

	var data tokenResponse
	json.NewDecoder(resp.Body).Decode(&data)
	return data.AccessToken
}

func createRoom(token, name string) int {
	jsonBody, _ := json.Marshal(map[string]string{"name": name})
	req, _ := http.NewRequest("POST", BaseURL+"/api/rooms", bytes.NewBuffer(jsonBody))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return 0
	}
	var room roomResponse
	json.NewDecoder(resp.Body).Decode(&room)
	return room.ID
}

func doPost(token, path string, body any) bool {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest("POST", BaseURL+path, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}

func postJSON(path string, body map[string]string) (*http.Response, error) {
	jsonBody, _ := json.Marshal(body)
	return http.Post(BaseURL+path, "application/json", bytes.NewBuffer(jsonBody))
}
