package api

// Service accessors group Normalizer-backed calls by resource.

type WorkspacesService struct{ *Normalizer }

type ItemsService struct{ *Normalizer }

type DefinitionsService struct{ *Normalizer }

type ReportsService struct{ *Normalizer }

type MirroringService struct{ *Normalizer }

type PrivateEndpointsService struct{ *Normalizer }

func (n *Normalizer) Workspaces() WorkspacesService {
	return WorkspacesService{n}
}

func (n *Normalizer) Items() ItemsService {
	return ItemsService{n}
}

func (n *Normalizer) Definitions() DefinitionsService {
	return DefinitionsService{n}
}

func (n *Normalizer) Reports() ReportsService {
	return ReportsService{n}
}

func (n *Normalizer) Mirroring() MirroringService {
	return MirroringService{n}
}

func (n *Normalizer) PrivateEndpoints() PrivateEndpointsService {
	return PrivateEndpointsService{n}
}
