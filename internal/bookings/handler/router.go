package handler

import (
	"github.com/julienschmidt/httprouter"
)

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/conferences", h.Allocate)
	router.GET("/api/v1/conferences", h.ListConferences)
	router.GET("/api/v1/conferences/:id", h.GetConference)
	router.DELETE("/api/v1/conferences/:id", h.DeleteConference)

	router.POST("/api/v1/reservations", h.CreateReservation)
	router.GET("/api/v1/reservations", h.ListReservations)
	router.GET("/api/v1/reservations/:id", h.GetReservation)
	router.DELETE("/api/v1/reservations/:id", h.DeleteReservation)

	router.GET("/api/v1/rooms/:name/conference", h.GetConferenceByRoom)
	router.GET("/api/v1/rooms/:name/reservation", h.GetReservationByRoom)
	router.DELETE("/api/v1/rooms/:name/reservation", h.DeleteReservationByRoom)
}
