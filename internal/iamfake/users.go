package iamfake

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dropDatabas3/iamprobe/internal/api"
)

func decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return v, false
	}
	return v, true
}

func lenient(r *http.Request) bool {
	return r.URL.Query().Get("leniency") == api.Enable
}

func public(u api.User) api.User {
	u.Password = ""
	return u
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	in, ok := decode[api.User](w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.Username == "" || in.Password == "" || s.lookup(in.Username) != nil || s.lookup(in.Email) != nil {
		writeError(w, http.StatusBadRequest, "Invalid or duplicate user")
		return
	}
	s.users[in.Username] = &user{User: in}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Registration successful", "user": public(in)})
}

func (s *Server) selfDetails(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.users[current(r)]
	s.mu.Unlock()
	if u == nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	writeJSON(w, http.StatusOK, public(u.User))
}

func (s *Server) createUsers(w http.ResponseWriter, r *http.Request) {
	in, ok := decode[[]api.User](w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var taken, created []string
	for _, u := range in {
		if s.lookup(u.Username) != nil || (u.Email != "" && s.lookup(u.Email) != nil) {
			taken = append(taken, u.Username)
		}
	}
	if len(taken) > 0 && !lenient(r) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"usernames_already_taken": taken})
		return
	}
	for _, u := range in {
		if s.lookup(u.Username) != nil {
			continue
		}
		cp := u
		s.users[u.Username] = &user{User: cp}
		created = append(created, u.Username)
	}
	writeJSON(w, http.StatusOK, map[string]any{"created_users": created})
}

func (s *Server) deleteUsers(w http.ResponseWriter, r *http.Request) {
	ids, ok := decode[[]string](w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteBatches = append(s.deleteBatches, len(ids))

	if s.failDeletes > 0 {
		s.failDeletes--
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	var missing []string
	for _, id := range ids {
		if s.lookup(id) == nil {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 && !lenient(r) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"users_not_found": missing})
		return
	}
	for _, id := range ids {
		u := s.lookup(id)
		if u == nil || u.Username == s.opts.AdminUsername {
			continue
		}
		if strings.Contains(id, "@") {
			s.deletedBy["email"]++
		} else {
			s.deletedBy["username"]++
		}
		delete(s.users, u.Username)
	}
	writeMessage(w, "Users deleted successfully")
}

func (s *Server) readUsers(w http.ResponseWriter, r *http.Request) {
	ids, ok := decode[[]string](w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []api.User
	var missing []string
	for _, id := range ids {
		if u := s.lookup(id); u != nil {
			found = append(found, public(u.User))
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 && !lenient(r) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"users_not_found": missing})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"found_users": found})
}

func (s *Server) updateUsers(w http.ResponseWriter, r *http.Request) {
	in, ok := decode[[]api.User](w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated []string
	for _, u := range in {
		cur := s.lookup(u.Username)
		if cur == nil {
			continue
		}
		if u.FirstName != "" {
			cur.FirstName = u.FirstName
		}
		if u.LastName != "" {
			cur.LastName = u.LastName
		}
		if u.Password != "" {
			cur.Password = u.Password
		}
		updated = append(updated, u.Username)
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated_users": updated})
}

func (s *Server) createRoles(w http.ResponseWriter, r *http.Request) {
	in, ok := decode[[]api.Role](w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var taken, created []string
	for _, ro := range in {
		if _, dup := s.roles[ro.RoleName]; dup {
			taken = append(taken, ro.RoleName)
		}
	}
	if len(taken) > 0 && !lenient(r) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"roles_already_exist": taken})
		return
	}
	for _, ro := range in {
		if _, dup := s.roles[ro.RoleName]; dup {
			continue
		}
		s.roles[ro.RoleName] = ro
		created = append(created, ro.RoleName)
	}
	writeJSON(w, http.StatusOK, map[string]any{"created_roles": created})
}

func (s *Server) deleteRoles(w http.ResponseWriter, r *http.Request) {
	names, ok := decode[[]string](w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDeletes > 0 {
		s.failDeletes--
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	var missing []string
	for _, n := range names {
		if _, ok := s.roles[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 && !lenient(r) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"roles_not_found": missing})
		return
	}
	for _, n := range names {
		delete(s.roles, n)
	}
	writeMessage(w, "Roles deleted successfully")
}

func (s *Server) readRoles(w http.ResponseWriter, r *http.Request) {
	names, ok := decode[[]string](w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []api.Role
	for _, n := range names {
		if ro, ok := s.roles[n]; ok {
			found = append(found, ro)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"found_roles": found})
}

func (s *Server) updateRoles(w http.ResponseWriter, r *http.Request) {
	in, ok := decode[[]api.Role](w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated []string
	for _, ro := range in {
		if _, ok := s.roles[ro.RoleName]; ok {
			s.roles[ro.RoleName] = ro
			updated = append(updated, ro.RoleName)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated_roles": updated})
}

func (s *Server) readPermissions(w http.ResponseWriter, r *http.Request) {
	names, ok := decode[[]string](w, r)
	if !ok {
		return
	}
	known := map[string]bool{"CAN_CREATE_USER": true, "CAN_READ_USER": true, "CAN_UPDATE_USER": true, "CAN_DELETE_USER": true}
	var found []string
	for _, n := range names {
		if known[n] {
			found = append(found, n)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"found_permissions": found})
}
