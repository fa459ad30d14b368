package render

// Panel copy shared by every view.
const (
	LoadingMessage       = "Nous préparons une sélection sur mesure…"
	NoResultsMessage     = "Nous sommes désolés, aucun produit n’a été trouvé pour votre recherche."
	ResultsTitle         = "Résultats classés par pertinence"
	HistoryTitle         = "Dernières recherches"
	HistoryClearLabel    = "Effacer"
	LoadMoreLabel        = "Voir plus"
	DetailsToggleLabel   = "Voir les détails"
	RateLimitAlternative = "Ou utilisez le moteur de recherche classique en tapant votre recherche, puis en cliquant sur l'icône 🔍."
)
