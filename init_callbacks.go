package main

import (
	"github.com/medhanag29/rural-classroom/services"
	"github.com/medhanag29/rural-classroom/ws"
)

// registerHubCallbacks connects the hub to the services it must not import:
// room validation goes through the course service's cached lookup and
// relayed chat lines share a per-user limiter.
func registerHubCallbacks(hub *ws.Hub, courseService services.CourseService, limiters *RateLimiters) {
	hub.SetRoomChecker(courseService.RoomExists)
	hub.SetRelayLimiter(limiters.MessageRelay.Allow)
}
