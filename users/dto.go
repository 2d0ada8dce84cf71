package users

// ImageUpdateResponse is returned after an avatar or cover image upload.
// Path is what the profile stores; URL is the same file on the host that served the request.
type ImageUpdateResponse struct {
	Message string `json:"message" example:"Avatar updated successfully"`
	Path    string `json:"path" example:"/uploads/avatars/avatars-6f1c0e9e.png"`
	URL     string `json:"url" example:"http://localhost:5000/uploads/avatars/avatars-6f1c0e9e.png"`
}
