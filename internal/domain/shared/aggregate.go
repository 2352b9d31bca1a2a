package shared

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot provides common fields for aggregate roots.
//
// Version is the optimistic lock stamp. It is bumped at most once per unit of
// work: the first mutation after a load (or after MarkPersisted) increments
// it, later mutations in the same unit reuse the pending value. Repositories
// compare against LoadedVersion.
type BaseAggregateRoot struct {
	BaseEntity
	Version      int           `gorm:"not null;default:1"`
	loaded       int           `gorm:"-"`
	dirty        bool          `gorm:"-"`
	domainEvents []DomainEvent `gorm:"-"`
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// LoadedVersion returns the version the aggregate had when it was loaded or
// last persisted.
func (a *BaseAggregateRoot) LoadedVersion() int {
	if !a.dirty {
		return a.Version
	}
	return a.loaded
}

// IncrementVersion increments the version number once per unit of work
func (a *BaseAggregateRoot) IncrementVersion() {
	if a.dirty {
		return
	}
	a.loaded = a.Version
	a.Version++
	a.dirty = true
}

// MarkPersisted records that the current version is stored
func (a *BaseAggregateRoot) MarkPersisted() {
	a.loaded = a.Version
	a.dirty = false
}

// IsDirty reports whether the aggregate has unsaved mutations
func (a *BaseAggregateRoot) IsDirty() bool {
	return a.dirty
}

// AddDomainEvent adds a domain event to be published
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(),
		Version:      1,
		domainEvents: make([]DomainEvent, 0),
	}
}

// RestoreBaseAggregateRoot rebuilds the aggregate base from stored state
func RestoreBaseAggregateRoot(entity BaseEntity, version int) BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: entity,
		Version:    version,
		loaded:     version,
	}
}
