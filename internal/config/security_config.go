package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAdmin                       // Admin access token required
)

// RouteSecurityConfig maps named HTTP routes and full gRPC method names to
// their required security level
var RouteSecurityConfig = map[string]SecurityLevel{
	// Applicant self-service
	"apply":        SecurityPublic,
	"requestLink":  SecurityPublic,
	"status":       SecurityPublic,
	"leave":        SecurityPublic,
	"acceptOffer":  SecurityPublic,
	"declineOffer": SecurityPublic,
	"adminLogin":   SecurityPublic,
	"health":       SecurityPublic,
	"metrics":      SecurityPublic,

	// Administration
	"listApplicants":    SecurityAdmin,
	"removeApplicant":   SecurityAdmin,
	"offerNext":         SecurityAdmin,
	"listPlots":         SecurityAdmin,
	"createPlot":        SecurityAdmin,
	"runExpireOffers":   SecurityAdmin,
	"runMonthlyReport":  SecurityAdmin,
	"notificationStats": SecurityAdmin,

	// gRPC health checks; reflection falls through to admin
	"/grpc.health.v1.Health/Check": SecurityPublic,
	"/grpc.health.v1.Health/List":  SecurityPublic,
	"/grpc.health.v1.Health/Watch": SecurityPublic,
}

// GetSecurityLevel returns the security level for a given route name
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := RouteSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown routes
	return SecurityAdmin
}
