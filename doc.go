// Package flowline renders polylines as animated trails on a 2D map.
//
// Each line is expanded into a ribbon of triangles with miter joins. Every
// vertex carries the distance walked along its line, and the fragment stage
// turns that distance and the elapsed time into a moving, fading trail.
//
// # Quick start
//
// Put the lines in a [GraphicsCollection], create a [Layer] and drive it from
// the host's frame loop:
//
//	graphics := flowline.NewGraphicsCollection(gs...)
//	layer := flowline.NewLayer(graphics, flowline.LayerConfig{TrailWidth: 4})
//	if err := layer.Attach(ctx, view, view.State()); err != nil {
//		return err
//	}
//	defer layer.Detach()
//
//	// every frame
//	if err := layer.Render(view.State()); err != nil {
//		return err
//	}
//
// ctx is a [Context], the GPU capability the layer draws through. The
// ebitenctx package implements it for [Ebitengine]. view is any [Host];
// [MapView] is a minimal one with pan and zoom animations.
//
// # Frames
//
// Vertices are stored relative to the view center of the last rebuild. While
// the view pans, only a translation uniform changes. Once the view settles
// away from that center, the buffers are rebuilt around the new center so
// float32 positions stay precise. Any change to the collection also
// triggers a rebuild on the next [Layer.Render]. See [FrameState].
//
// # Data
//
// [LoadTrips] and [LoadGeoJSON] read line data. [ProjectGraphics] converts
// between WGS84 and Web Mercator. [CombinePaths] and [MergedGraphics] join
// lines that continue each other.
//
// [Ebitengine]: https://ebitengine.org
package flowline
