package catalog

const (
	// Base URL of the public catalog deployment
	DefaultBaseURL = "https://jiosavan-api-with-playlist.vercel.app"

	// API Endpoints
	SearchSongsEndpoint = "/api/search/songs"

	// Search paging
	DefaultSearchLimit = 50
	MaxSearchLimit     = 500
)
