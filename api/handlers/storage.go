package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	cldapi "github.com/cloudinary/cloudinary-go/v2/api"

	"github.com/linesmerrill/dispute-resolution-api/config"
)

// Storage handles signed-upload requests for the document store
type Storage struct{}

// GenerateSignature returns a short-lived upload signature so clients can
// push case documents straight to Cloudinary without proxying the bytes
// through this API
func (s Storage) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	uploadPreset := os.Getenv("CLOUDINARY_UPLOAD_PRESET")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")

	params := url.Values{}
	params.Set("timestamp", timestamp)
	if uploadPreset != "" {
		params.Set("upload_preset", uploadPreset)
	}
	if folder := r.URL.Query().Get("folder"); folder != "" {
		params.Set("folder", folder)
	}

	signature, err := cldapi.SignParameters(params, apiSecret)
	if err != nil {
		config.ErrorStatus("failed to sign upload parameters", http.StatusInternalServerError, w, err)
		return
	}

	response := map[string]string{
		"timestamp": timestamp,
		"signature": signature,
		"apiKey":    os.Getenv("CLOUDINARY_API_KEY"),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
