//go:build ignore

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
)

// Manual smoke test against a locally running server. Requires Ollama with
// the embedding and chat models pulled.
//
//	go run scripts/smoke_rag.go

const baseURL = "http://localhost:8000/api"

func main() {
	sessionID := createSession()
	fmt.Printf("session: %s\n", sessionID)

	uploadFile(sessionID, "smoke.txt",
		"The warranty covers the battery for eight years or 100,000 miles.\n\n"+
			"Scheduled maintenance is required every 12,000 miles.")
	fmt.Println("uploaded smoke.txt")

	answer := ask(sessionID, "How long is the battery covered?")
	fmt.Printf("answer: %s\n", answer)
}

func createSession() string {
	resp, err := http.Post(baseURL+"/session/v1", "application/json", nil)
	if err != nil {
		log.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Data struct {
			SessionId string `json:"session_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Fatalf("decode session response: %v", err)
	}
	return body.Data.SessionId
}

func uploadFile(sessionID, filename, content string) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		log.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		log.Fatalf("write form file: %v", err)
	}
	writer.Close()

	req, err := http.NewRequest("POST", baseURL+"/upload/v1/files", &buf)
	if err != nil {
		log.Fatalf("create upload request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Session-ID", sessionID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		log.Fatalf("upload failed: %d %s", resp.StatusCode, body)
	}
}

func ask(sessionID, question string) string {
	payload, _ := json.Marshal(map[string]string{"question": question})
	req, err := http.NewRequest("POST", baseURL+"/rag/v1/ask", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("create ask request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", sessionID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("ask: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Data struct {
			Answer string `json:"answer"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Fatalf("decode ask response: %v", err)
	}
	return body.Data.Answer
}
