/*
	Package ndio provides the core types shared by the cutout, metadata, remote and
	blobstore packages: voxel coordinates and bounding boxes, the block grid tiling of
	a request, dense volumes with explicit memory layout, the element data types of
	channels, the npz wire encoding, the error types, and leveled logging.
*/
package ndio
