package dtcontext

// DTModule is a sub-module of the twin module.
type DTModule interface {
	Name() string
	InitModule(dtc *DTContext, comm, heartBeat chan interface{})
	Start()
}
