package twin

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type signupRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Name     string         `json:"name"`
	Role     string         `json:"role"`
	Bio      string         `json:"bio"`
	BikeInfo map[string]any `json:"bikeInfo"`
	ClubInfo map[string]any `json:"clubInfo"`
}

type authResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// signup handles POST /api/auth/signup.
func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if !validRoles[req.Role] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid role %q", req.Role))
		return
	}

	u, err := s.state.createUser(User{
		Email:    req.Email,
		Name:     req.Name,
		Role:     req.Role,
		Bio:      req.Bio,
		BikeInfo: req.BikeInfo,
		ClubInfo: req.ClubInfo,
	}, req.Password)
	if errors.Is(err, errEmailTaken) {
		writeError(w, http.StatusBadRequest, "Email already exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondWithToken(w, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// login handles POST /api/auth/login.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing email or password")
		return
	}
	u, ok := s.state.authenticate(req.Email, req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	s.respondWithToken(w, u)
}

func (s *Server) respondWithToken(w http.ResponseWriter, u User) {
	token, err := s.tokens.issue(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: token})
}

// me handles GET /api/auth/me.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, ok := s.state.user(claimsFrom(r.Context()).UserID)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// getUser handles GET /api/users/{id}.
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	u, ok := s.state.user(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// updateUser handles PUT /api/users/{id}. Only the user or an admin may.
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	id := chi.URLParam(r, "id")
	if claims.UserID != id && claims.Role != RoleAdmin {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}
	var upd userUpdate
	if !decode(w, r, &upd) {
		return
	}
	u, err := s.state.updateUser(id, upd)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// maxUpload bounds multipart bodies.
const maxUpload = 10 << 20

// upload handles POST /api/upload: the file comes back as a data URL.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid file")
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid file")
		return
	}
	contentType := hdr.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url": "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data),
	})
}
