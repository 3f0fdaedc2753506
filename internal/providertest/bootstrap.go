package providertest

import (
	"fmt"
	"html"
	"net/http"
)

// bootstrapPage mirrors the shape of the SSO landing page: the pool metadata
// is assigned to globals in an inline script.
const bootstrapPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Hive | Sign in</title>
  <script src="/static/js/main.js" defer></script>
  <script>
    window.HiveSSOPoolId = "%s";
    window.HiveSSOPublicCognitoClientId = "%s";
    window.HiveSSORegion = "%s";
  </script>
</head>
<body><div id="root"></div></body>
</html>
`

func (s *Server) handleBootstrapPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, bootstrapPage,
		html.EscapeString(s.cfg.PoolID),
		html.EscapeString(s.cfg.ClientID),
		html.EscapeString(s.region))
}
