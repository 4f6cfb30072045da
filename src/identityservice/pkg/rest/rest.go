package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/abahm00/shopwise-clone/src/identityservice/pkg/model"
	"github.com/abahm00/shopwise-clone/src/identityservice/pkg/service"
)

type userRequest struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Cart     model.Cart `json:"cart"`
}

type cartRequest struct {
	Cart *model.Cart `json:"cart"`
}

type UserService struct {
	Logic service.UserServiceLogic
	Log   logrus.FieldLogger
}

// Register mounts the /users resource on r.
func (s *UserService) Register(r *mux.Router) {
	r.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users", s.createUser).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}", s.getUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", s.patchCart).Methods(http.MethodPatch)
	r.HandleFunc("/users/{id}", s.replaceUser).Methods(http.MethodPut)
}

// listUsers answers ?email= lookups and ?email=&password= credential checks with an array.
func (s *UserService) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email := q.Get("email")
	if email == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("email query parameter is required"))
		return
	}

	var (
		users []model.User
		err   error
	)
	if q.Has("password") {
		users, err = s.Logic.Authenticate(r.Context(), email, q.Get("password"))
	} else {
		users, err = s.Logic.FindByEmail(r.Context(), email)
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

func (s *UserService) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode user"))
		return
	}
	u, err := s.Logic.Register(r.Context(), req.Name, req.Email, req.Password, req.Cart)
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.Log.WithField("user", u.ID).Info("user registered")
	s.writeJSON(w, http.StatusCreated, u)
}

func (s *UserService) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.Logic.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, u)
}

// patchCart changes only the cart; any other field in the body is ignored.
func (s *UserService) patchCart(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode cart"))
		return
	}
	if req.Cart == nil {
		s.writeError(w, http.StatusBadRequest, errors.New("cart is required"))
		return
	}
	u, err := s.Logic.UpdateCart(r.Context(), mux.Vars(r)["id"], *req.Cart)
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, u)
}

func (s *UserService) replaceUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode user"))
		return
	}
	u, err := s.Logic.Replace(r.Context(), mux.Vars(r)["id"], req.Name, req.Email, req.Password, req.Cart)
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.Log.WithField("user", u.ID).Info("user replaced")
	s.writeJSON(w, http.StatusOK, u)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *UserService) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.Warnf("failed to write response: %v", err)
	}
}

func (s *UserService) writeError(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.Log.WithField("error", err).Error("request failed")
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
