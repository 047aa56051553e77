// Package project opens an IntelliJ project directory and keeps its
// entities in sync with the configuration files.
//
// A Project wires the serializers of the jps package to a file system,
// loads every configuration file into an entity storage, writes changed
// entities back and reloads files changed on disk.
//
// # Quick Start
//
//	p, err := project.Open(ctx, project.Options{
//	    Layout: jps.Layout{ProjectDir: fileurl.FromPath("/work/app")},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	report, err := p.Load(ctx)
//	...
//	err = p.Update(func(b *storage.Builder) error {
//	    // modify entities
//	    return nil
//	})
//	touched, err := p.Save(ctx)
//
// # Watching
//
// Watch blocks until its context is cancelled, feeding batches of file
// changes into Reload:
//
//	p.OnReload(func(ev project.ReloadEvent) { ... })
//	go p.Watch(ctx)
//
// # Source names
//
// Entities stored in directory-based files (.idea/libraries,
// .idea/artifacts) refer to their file through an id. With a cache
// configured the ids survive restarts, so sources compare equal across
// sessions.
//
// # Thread Safety
//
// A Project is safe for concurrent use. Update callbacks run with the
// project locked and must not call back into it.
package project
