package sim

import "github.com/legalis-go/core/pkg/errtax"

func errEmptyPopulation() error {
	return errtax.New(errtax.CodeEmptyPopulation, errtax.ClassCaller, "simulator population is empty")
}

func errNoStatutes() error {
	return errtax.New(errtax.CodeNoStatutes, errtax.ClassCaller, "simulator rule set is empty")
}

func errInvalidSchedule(reason string) error {
	return errtax.New(errtax.CodeInvalidSchedule, errtax.ClassCaller, "invalid schedule: "+reason)
}

func errCancelled() error {
	return errtax.New(errtax.CodeCancelled, errtax.ClassResource, "simulation cancelled at step boundary")
}

func errCheckpointIncompatible(reason string) error {
	return errtax.New(errtax.CodeCheckpointIncompatible, errtax.ClassState, "incompatible checkpoint: "+reason)
}

func errUnsupportedEntity(id string) error {
	return errtax.New(errtax.CodeUnsupportedEntity, errtax.ClassCaller,
		"entity "+id+" is not a mutable *entity.Static and cannot be simulated")
}
