package uploads

import (
	"net/http"

	"github.com/user/blog-go/httpx"
)

// UploadResponse is returned by POST /uploads.
type UploadResponse struct {
	Message string `json:"message" example:"File uploaded successfully"`
	Path    string `json:"path" example:"/uploads/images/images-1c2d.png"`
	URL     string `json:"url" example:"http://localhost:8080/uploads/images/images-1c2d.png"`
}

// Handlers exposes general image uploads over HTTP.
type Handlers struct {
	storage Storage
}

func NewHandlers(storage Storage) *Handlers {
	return &Handlers{storage: storage}
}

// HandleUpload godoc
// @Summary Upload an image
// @Description Stores an image (for example a post's featured image) and returns its path.
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Image file (jpg, jpeg, png, gif, webp; max 5 MiB). The field may also be named file."
// @Success 201 {object} uploads.UploadResponse
// @Failure 400 {object} apperror.ErrorResponse "No file or not an image"
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized"
// @Router /uploads [post]
func (h *Handlers) HandleUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := FromRequest(w, r, h.storage, KindImage, "image", "file")
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, UploadResponse{
			Message: "File uploaded successfully",
			Path:    path,
			URL:     AbsoluteURL(r, path),
		})
	}
}
