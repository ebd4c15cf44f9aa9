package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestDecodeAnswer(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{"canonical", `{"answer":" Use copper fungicide. "}`, "Use copper fungicide.", nil},
		{"legacy response", `{"response":"Irrigate twice"}`, "Irrigate twice", nil},
		{"legacy reply", `{"reply":"Wait a week"}`, "Wait a week", nil},
		{"answer wins", `{"answer":"A","message":"M"}`, "A", nil},
		{"empty answer falls back", `{"answer":"","message":"M"}`, "M", nil},
		{"nothing", `{"status":"ok"}`, "", ErrEmptyAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeAnswer(json.RawMessage(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("answer = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := decodeAnswer(json.RawMessage(`[1,2]`)); err == nil {
		t.Error("non-object answer should fail")
	}
}

func TestAskSendsContext(t *testing.T) {
	var got map[string]any
	r := chi.NewRouter()
	r.Post("/api/chat/ask", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, map[string]string{"answer": "ok"})
	})
	c := newTestClient(t, r, &fakeSession{}, &fakeNav{})

	_, err := c.Ask(context.Background(), AskRequest{
		Question:   "how much dose?",
		Topic:      "Leaf Blight",
		Confidence: 87.5,
		Language:   "mr",
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got["question"] != "how much dose?" || got["disease"] != "Leaf Blight" || got["language"] != "mr" {
		t.Errorf("payload = %v", got)
	}
	if got["confidence"] != 87.5 {
		t.Errorf("confidence = %v", got["confidence"])
	}
	if _, ok := got["details"].(map[string]any); !ok {
		t.Errorf("details = %#v, want object", got["details"])
	}
}

func TestAskEmptyAnswer(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/chat/ask", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})
	c := newTestClient(t, r, &fakeSession{}, &fakeNav{})

	_, err := c.Ask(context.Background(), AskRequest{Question: "q"})
	if !errors.Is(err, ErrEmptyAnswer) {
		t.Errorf("err = %v, want ErrEmptyAnswer", err)
	}
	if errors.Is(err, ErrNetwork) {
		t.Error("empty answer is not a network error")
	}
}

func TestLoginMissingToken(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Login Successful"})
	})
	c := newTestClient(t, r, &fakeSession{}, &fakeNav{})

	_, err := c.Login(context.Background(), LoginRequest{Email: "a@b.c", Password: "secret1"})
	if !errors.Is(err, ErrMissingToken) {
		t.Errorf("err = %v, want ErrMissingToken", err)
	}
}

func TestParseVoicePartial(t *testing.T) {
	var gotText string
	r := chi.NewRouter()
	r.Post("/api/crop/parse-voice-smart", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		gotText = body["text"]
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"location":"Pune","season":"Kharif","soil_type":null,"water":"","method":"offline"}`))
	})
	c := newTestClient(t, r, &fakeSession{}, &fakeNav{})

	fields, err := c.ParseVoice(context.Background(), "crop", "pune kharif")
	if err != nil {
		t.Fatalf("ParseVoice: %v", err)
	}
	if gotText != "pune kharif" {
		t.Errorf("sent text = %q", gotText)
	}
	if len(fields) != 2 || fields["location"] != "Pune" || fields["season"] != "Kharif" {
		t.Errorf("fields = %v, want location and season only", fields)
	}
}

func TestRecommendCrops(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/crop/simple-predict", func(w http.ResponseWriter, r *http.Request) {
		var req CropRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.SoilType != "Black" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "bad soil"}}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"top_3_crops": []CropPick{
				{Crop: "Cotton", Profit: "₹40k-60k/acre"},
				{Crop: "Soybean", Profit: "₹25k-35k/acre"},
				{Crop: "Tur", Profit: "₹30k-45k/acre"},
			},
		})
	})
	c := newTestClient(t, r, &fakeSession{}, &fakeNav{})

	picks, err := c.RecommendCrops(context.Background(), CropRequest{Season: "Kharif", SoilType: "Black", Water: "Medium"})
	if err != nil {
		t.Fatalf("RecommendCrops: %v", err)
	}
	if len(picks) != 3 || picks[0].Crop != "Cotton" {
		t.Errorf("picks = %+v", picks)
	}

	_, err = c.RecommendCrops(context.Background(), CropRequest{SoilType: "Clay"})
	if got := Message(err, ""); got != "bad soil" {
		t.Errorf("Message = %q, want %q", got, "bad soil")
	}
}
