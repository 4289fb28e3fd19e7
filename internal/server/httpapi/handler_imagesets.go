package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/beepdata/internal/server/models"
	"github.com/dmitrijs2005/beepdata/internal/server/services"
)

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, validationError("invalid id")
	}
	return id, nil
}

func owner(r *http.Request) string {
	id, _ := IdentityFrom(r.Context())
	return id.UserID
}

func (s *HTTPServer) handleListImageSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.imageSets.ListImageSets(r.Context(), owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.toImageSetList(r.Context(), sets)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleCreateImageSet(w http.ResponseWriter, r *http.Request) {
	var req imageSetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var title, description string
	if req.Title != nil {
		title = *req.Title
	}
	if req.Description != nil {
		description = *req.Description
	}

	set, err := s.imageSets.CreateImageSet(r.Context(), owner(r), title, description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeImageSet(w, r, http.StatusCreated, set)
}

func (s *HTTPServer) handleGetImageSet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	set, err := s.imageSets.GetImageSet(r.Context(), owner(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeImageSet(w, r, http.StatusOK, set)
}

func (s *HTTPServer) handleUpdateImageSet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req imageSetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	set, err := s.imageSets.UpdateImageSet(r.Context(), owner(r), id, services.ImageSetPatch{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeImageSet(w, r, http.StatusOK, set)
}

func (s *HTTPServer) handleDeleteImageSet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.imageSets.DeleteImageSet(r.Context(), owner(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleAddImage(w http.ResponseWriter, r *http.Request) {
	setID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.parseMultipart(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	imageType := r.FormValue("image_type")
	file, header, err := r.FormFile("image_file")
	if err != nil {
		s.writeError(w, r, validationError("image_file is required"))
		return
	}
	defer file.Close()

	img, err := s.imageSets.AddImage(r.Context(), owner(r), setID, toUpload(imageType, file, header))
	s.metrics.recordUpload(imageType, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.toImageResponse(r.Context(), img)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *HTTPServer) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.imageSets.DeleteImage(r.Context(), owner(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) writeImageSet(w http.ResponseWriter, r *http.Request, status int, set *models.ImageSet) {
	resp, err := s.toImageSetResponse(r.Context(), set)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, resp)
}

// parseMultipart bounds the body by the upload limit and parses the form.
func (s *HTTPServer) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return validationError("upload exceeds the size limit")
		}
		return validationError("invalid multipart form")
	}
	return nil
}

func toUpload(imageType string, file multipart.File, header *multipart.FileHeader) services.ImageUpload {
	return services.ImageUpload{
		Type:        imageType,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
}
