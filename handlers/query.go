package handlers

import (
	"net/http"

	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/repository"
)

// listFilter parses the "query" parameter of a list endpoint, writing a 400
// when it is malformed or names a field outside fields.
//
//	GET /api/messages?query={"course":"c1","lecture":{"$in":["l1","l2"]}}
func listFilter(w http.ResponseWriter, r *http.Request, fields repository.FilterFields) (repository.Filter, bool) {
	f, err := repository.ParseFilter(r.URL.Query().Get("query"), fields)
	if err != nil {
		pkg.Error(w, err)
		return nil, false
	}
	return f, true
}
