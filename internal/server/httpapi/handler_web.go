package httpapi

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/dmitrijs2005/beepdata/internal/common"
	"github.com/dmitrijs2005/beepdata/internal/server/models"
	"github.com/dmitrijs2005/beepdata/internal/server/services"
)

// uploadFields maps the web upload form fields to image types.
var uploadFields = []struct {
	field     string
	imageType models.ImageType
}{
	{"input_image", models.ImageTypeInput},
	{"dress_image", models.ImageTypeDress},
	{"final_image", models.ImageTypeFinal},
}

func (s *HTTPServer) handleWebLogin(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.startSession(w, r, user.ID)
}

// handleWebRegister creates the account and logs it in straight away.
func (s *HTTPServer) handleWebRegister(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.startSession(w, r, user.ID)
}

// decodeCredentials accepts a JSON body or a plain HTML form post.
func decodeCredentials(r *http.Request) (*credentialsRequest, error) {
	req := &credentialsRequest{}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
		req.Email = r.FormValue("email")
		return req, nil
	}
	if err := decodeJSON(r, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *HTTPServer) startSession(w http.ResponseWriter, r *http.Request, userID string) {
	session, err := s.users.CreateSession(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.Expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, webResponse{Success: true, Redirect: dashboardPath})
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.handleListImageSets(w, r)
}

// handleUpload creates a new numbered set from whichever of the three
// image fields were sent.
func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var uploads []services.ImageUpload
	for _, f := range uploadFields {
		file, header, err := r.FormFile(f.field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			s.writeError(w, r, validationError("invalid "+f.field))
			return
		}
		defer func(file multipart.File) { _ = file.Close() }(file)
		uploads = append(uploads, toUpload(string(f.imageType), file, header))
	}

	set, err := s.imageSets.CreateImageSetWithImages(r.Context(), owner(r), uploads)
	for _, u := range uploads {
		s.metrics.recordUpload(u.Type, err)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, webResponse{
		Success:    true,
		Message:    fmt.Sprintf("%s created successfully!", set.Title),
		ImageSetID: set.ID,
	})
}

// handleWebLogout ends the session if there is one and sends the browser
// back to the login page.
func (s *HTTPServer) handleWebLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(common.SessionCookieName); err == nil && c.Value != "" {
		if err := s.users.DeleteSession(r.Context(), c.Value); err != nil {
			s.logger.Warn(r.Context(), "failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}
