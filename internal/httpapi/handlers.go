package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	body, err := json.Marshal(RootResponse{Categories: "", Parts: ""})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	cacheKey := token + ":categories.json"
	if cached, ok := s.cache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	lib, _, err := s.indexFor(token)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	body, err := json.Marshal(Categories(lib))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.cache.Set(cacheKey, body)
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handlePartsByCategory(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	raw := strings.TrimSuffix(r.PathValue("categoryId"), ".json")
	categoryID, err := strconv.Atoi(raw)
	if err != nil || categoryID < 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	cacheKey := token + ":parts/category/" + raw
	if cached, ok := s.cache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	lib, _, err := s.indexFor(token)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	tableIdx := categoryID - 1
	if tableIdx >= len(lib.Tables) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	body, err := json.Marshal(PartSummaries(lib.Tables[tableIdx]))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.cache.Set(cacheKey, body)
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handlePartByID(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	partID := strings.TrimSuffix(r.PathValue("partId"), ".json")

	lib, idx, err := s.indexFor(token)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	tableIdx, row, ok := idx.PartByID(partID)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	detail := PartDetailFor(row, lib.Tables[tableIdx].Schema)
	body, err := json.Marshal(detail)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
