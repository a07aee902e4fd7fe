package api

import (
	"github.com/orbitapp/orbit-server/internal/service"
)

// Services groups all business logic services used by the API server.
type Services struct {
	Entity      *service.EntityService
	Tag         *service.TagService
	Sharing     *service.SharingService
	Interaction *service.InteractionService
	Bit         *service.BitService
	Listing     *service.ListingService
	Import      *service.ImportService
}
