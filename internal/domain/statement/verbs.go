package statement

// Namespace is the IRI root for activities and verbs the portal mints itself.
const Namespace = "https://hulab.polyu.edu.hk/xapi"

// Verbs used by the portal. Standard IRIs come from the ADL and
// activitystrea.ms registries; portal-specific ones live under Namespace.
var (
	Experienced = Verb{ID: "http://adlnet.gov/expapi/verbs/experienced", Display: display("experienced")}
	Attempted   = Verb{ID: "http://adlnet.gov/expapi/verbs/attempted", Display: display("attempted")}
	Completed   = Verb{ID: "http://adlnet.gov/expapi/verbs/completed", Display: display("completed")}
	Interacted  = Verb{ID: "http://adlnet.gov/expapi/verbs/interacted", Display: display("interacted")}
	LoggedIn    = Verb{ID: "https://w3id.org/xapi/adl/verbs/logged-in", Display: display("logged in")}
	LoggedOut   = Verb{ID: "https://w3id.org/xapi/adl/verbs/logged-out", Display: display("logged out")}
	Searched    = Verb{ID: "https://w3id.org/xapi/acrossx/verbs/searched", Display: display("searched")}
	Created     = Verb{ID: "http://activitystrea.ms/schema/1.0/create", Display: display("created")}
	Updated     = Verb{ID: "http://activitystrea.ms/schema/1.0/update", Display: display("updated")}
	Deleted     = Verb{ID: "http://activitystrea.ms/schema/1.0/delete", Display: display("deleted")}
	Uploaded    = Verb{ID: Namespace + "/verbs/uploaded", Display: display("uploaded")}
)

// ActivityIRI builds a portal activity IRI, e.g. ActivityIRI("project", id).
func ActivityIRI(kind, id string) string {
	return Namespace + "/activities/" + kind + "/" + id
}

func display(en string) map[string]string {
	return map[string]string{"en-US": en}
}
