package website

import (
	"net/http"

	"github.com/fridayweigh/weights/src/auth"
	"github.com/fridayweigh/weights/src/broadcast"
	"github.com/fridayweigh/weights/src/weburl"
	"github.com/fridayweigh/weights/src/weekdates"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
)

// Deps are the long-lived collaborators every request can reach.
type Deps struct {
	Conn    *sqlx.DB
	Auth    *auth.Authenticator
	Hub     *broadcast.Hub
	Dates   weekdates.Generator
	Clock   clockwork.Clock
	DistDir string
}

func NewWebsiteRoutes(deps Deps) http.Handler {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Dates.Clock == nil {
		deps.Dates.Clock = deps.Clock
	}

	router := &Router{}
	routes := RouteBuilder{
		Router: router,
		Middlewares: []Middleware{
			trackRequest,
			logContextErrorsMiddleware,
			panicCatcherMiddleware,
			loadCommonData(deps),
		},
	}

	routes.GET(weburl.RegexHealth, Health)

	routes.POST(weburl.RegexApiLogin, Login)
	routes.POST(weburl.RegexApiLogout, Logout)

	api := routes.WithMiddleware(needsApiAuth)
	api.POST(weburl.RegexApiChangePassword, ChangePassword)
	api.GET(weburl.RegexApiData, Data)
	api.POST(weburl.RegexApiWeight, SaveWeight)
	api.DELETE(weburl.RegexApiWeight, DeleteWeight)
	api.GET(weburl.RegexApiExport, Export)
	api.GET(weburl.RegexApiWebsocket, Websocket)
	api.AnyMethod(weburl.RegexApi, FourOhFour)

	routes.AnyMethod(weburl.RegexHomepage, Index)

	pages := routes.WithMiddleware(needsPageAuth)
	pages.GET(weburl.RegexAssets, Asset)
	pages.AnyMethod(weburl.RegexCatchAll, FourOhFour)

	return router
}
